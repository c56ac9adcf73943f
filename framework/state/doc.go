// Package state provides the application state store: one nested tree
// addressed by dot-delimited paths and changed only through named mutations.
//
//	store := state.New()
//	_ = store.RegisterMutation("setTheme", func(s state.Tree, p any) error {
//	    return s.Set("user.preferences.theme", p)
//	})
//	_ = store.Commit(ctx, "setTheme", "dark")
//	store.Get("user.preferences.theme") // "dark"
//
// Export produces a deep copy suitable for serialisation; ReplaceState loads
// such a copy back, for example in a new session. With a Persister every
// commit is also saved, and Restore reloads the last saved tree.
package state
