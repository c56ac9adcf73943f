package state_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/tracker/framework/state"
)

func setTheme(s state.Tree, p any) error {
	return s.Set("user.preferences.theme", p)
}

func TestTree_LookupAndSet(t *testing.T) {
	tree := state.Tree{}
	require.NoError(t, tree.Set("a.b.c", 1))

	v, ok := tree.Lookup("a.b.c")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = tree.Lookup("a.x.c")
	assert.False(t, ok)
	assert.Nil(t, tree.Get("a.b.c.d"), "walking into a scalar yields nil")

	err := tree.Set("a.b.c.d", 2)
	assert.ErrorIs(t, err, state.ErrNotAMap)
	assert.ErrorIs(t, tree.Set("", 1), state.ErrEmptyPath)

	tree.Delete("a.b.c")
	_, ok = tree.Lookup("a.b.c")
	assert.False(t, ok)
	tree.Delete("nothing.here")
}

func TestStore_CommitSetTheme(t *testing.T) {
	store := state.New()
	require.NoError(t, store.RegisterMutation("setTheme", setTheme))

	require.NoError(t, store.Commit(context.Background(), "setTheme", "dark"))

	exported := store.Export()
	assert.Equal(t, "dark", exported.State.Get("user.preferences.theme"))

	next := state.New()
	next.ReplaceState(exported.State)
	assert.Equal(t, "dark", next.Get("user.preferences.theme"))
}

func TestStore_GetMissingPath(t *testing.T) {
	store := state.New(state.WithState(state.Tree{"user": map[string]any{"name": "km"}}))

	assert.Equal(t, "km", store.Get("user.name"))
	assert.Nil(t, store.Get("user.preferences.theme"))
	_, ok := store.Lookup("user.preferences")
	assert.False(t, ok)
}

func TestStore_UnknownMutation(t *testing.T) {
	store := state.New()

	err := store.Commit(context.Background(), "nope", nil)

	var ue *state.UnknownMutationError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "nope", ue.Name)
	assert.ErrorIs(t, err, state.ErrUnknownMutation)
}

func TestStore_RegisterMutationValidation(t *testing.T) {
	store := state.New()
	assert.ErrorIs(t, store.RegisterMutation("", setTheme), state.ErrEmptyName)
	assert.ErrorIs(t, store.RegisterMutation("x", nil), state.ErrNilMutation)

	require.NoError(t, store.RegisterMutation("b", setTheme))
	require.NoError(t, store.RegisterMutation("a", setTheme))
	assert.Equal(t, []string{"a", "b"}, store.Mutations())
}

func TestStore_SubscribeReceivesChange(t *testing.T) {
	store := state.New()
	require.NoError(t, store.RegisterMutation("setTheme", setTheme))
	var got []state.Change
	unsubscribe := store.Subscribe(func(c state.Change) { got = append(got, c) })

	require.NoError(t, store.Commit(context.Background(), "setTheme", "dark"))
	unsubscribe()
	require.NoError(t, store.Commit(context.Background(), "setTheme", "light"))

	assert.Equal(t, []state.Change{{Mutation: "setTheme", Payload: "dark"}}, got)
}

func TestStore_FailingMutationDoesNotNotify(t *testing.T) {
	store := state.New()
	boom := errors.New("boom")
	require.NoError(t, store.RegisterMutation("fail", func(state.Tree, any) error { return boom }))
	notified := false
	store.Subscribe(func(state.Change) { notified = true })

	err := store.Commit(context.Background(), "fail", nil)

	assert.ErrorIs(t, err, boom)
	assert.False(t, notified)
}

func TestStore_PanickingMutationLeavesStoreUsable(t *testing.T) {
	store := state.New()
	require.NoError(t, store.RegisterMutation("explode", func(state.Tree, any) error { panic("bad payload") }))
	require.NoError(t, store.RegisterMutation("setTheme", setTheme))
	notified := false
	store.Subscribe(func(state.Change) { notified = true })

	err := store.Commit(context.Background(), "explode", nil)

	assert.ErrorIs(t, err, state.ErrMutationPanic)
	assert.Contains(t, err.Error(), "bad payload")
	assert.False(t, notified)

	require.NoError(t, store.Commit(context.Background(), "setTheme", "dark"))
	assert.Equal(t, "dark", store.Get("user.preferences.theme"))
}

func TestStore_ExportIsDeepCopy(t *testing.T) {
	store := state.New()
	require.NoError(t, store.RegisterMutation("setTheme", setTheme))
	require.NoError(t, store.Commit(context.Background(), "setTheme", "dark"))

	exported := store.Export()
	require.NoError(t, exported.State.Set("user.preferences.theme", "light"))

	assert.Equal(t, "dark", store.Get("user.preferences.theme"))
}

func TestStore_ReplaceStateCopiesInput(t *testing.T) {
	tree := state.Tree{"shows": map[string]any{"count": 1}}
	store := state.New()
	store.ReplaceState(tree)

	require.NoError(t, tree.Set("shows.count", 2))

	assert.Equal(t, 1, store.Get("shows.count"))
}

// ── Persistence ───────────────────────────────────────────────────────────────

type failingPersister struct{ err error }

func (f failingPersister) Load(context.Context) (state.Tree, error) { return nil, f.err }
func (f failingPersister) Save(context.Context, state.Tree) error  { return f.err }

func TestStore_PersistFailureAfterApply(t *testing.T) {
	disk := errors.New("disk full")
	store := state.New(state.WithPersister(failingPersister{err: disk}))
	require.NoError(t, store.RegisterMutation("setTheme", setTheme))

	err := store.Commit(context.Background(), "setTheme", "dark")

	assert.ErrorIs(t, err, state.ErrPersist)
	assert.ErrorIs(t, err, disk)
	assert.Equal(t, "dark", store.Get("user.preferences.theme"))
}

func TestStore_RestoreWithoutPersister(t *testing.T) {
	assert.NoError(t, state.New().Restore(context.Background()))
}

func TestSQLitePersister_RoundTrip(t *testing.T) {
	p, err := state.OpenSQLite(":memory:")
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	empty, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, empty)

	store := state.New(state.WithPersister(p))
	require.NoError(t, store.RegisterMutation("setTheme", setTheme))
	require.NoError(t, store.Commit(ctx, "setTheme", "dark"))
	require.NoError(t, store.Commit(ctx, "setTheme", "light"))

	restored := state.New(state.WithPersister(p))
	require.NoError(t, restored.Restore(ctx))

	assert.Equal(t, "light", restored.Get("user.preferences.theme"))
}

func appendEntry(s state.Tree, p any) error {
	entries, _ := s.Get("log").([]any)
	return s.Set("log", append(entries, p))
}

func TestStore_ConcurrentCommitsPersistInOrder(t *testing.T) {
	p, err := state.OpenSQLite(":memory:")
	require.NoError(t, err)
	defer p.Close()

	ctx := context.Background()
	store := state.New(state.WithPersister(p))
	require.NoError(t, store.RegisterMutation("append", appendEntry))

	var notified []any
	store.Subscribe(func(c state.Change) { notified = append(notified, c.Payload) })

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Commit(ctx, "append", fmt.Sprintf("entry-%d", i)))
		}()
	}
	wg.Wait()

	want := store.Export().State.Get("log")
	require.Len(t, want, 20)
	assert.Equal(t, want, notified, "subscribers see commits in commit order")

	saved, err := p.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, saved.Get("log"), "the last save holds the last commit")
}
