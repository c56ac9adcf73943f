// Package viewmodel provides the reactive state engine presentation
// view-models are built from.
//
// A concrete view-model holds a *ViewModel and adds domain methods:
//
//	type LibraryViewModel struct {
//	    *viewmodel.ViewModel
//	}
//
//	func NewLibraryViewModel(bus *events.Bus) *LibraryViewModel {
//	    vm := &LibraryViewModel{viewmodel.New("library", viewmodel.WithEvents(bus))}
//	    _ = vm.DefineComputed("count", func(vm *viewmodel.ViewModel) any { ... })
//	    return vm
//	}
//
// # State
//
// A key is either stored (Set) or computed (DefineComputed), never both.
// Computed values are recomputed on every Get. Set is a no-op when the new
// value is deeply equal to the stored one; otherwise it marks the
// view-model dirty, runs the key's watchers with (new, old) and emits a
// change event. SaveSnapshot and Reset make it clean again.
//
// # Events
//
// Notifications go through an events.Bus under "<name>.<event>" topics:
// change, loading, errors and disposed. Use On, or subscribe to Topic(event)
// on a shared bus.
//
// # Disposal
//
// Dispose clears everything and emits disposed. Afterwards mutating calls
// are ignored and reads see an empty view-model.
package viewmodel
