package library

import (
	"strings"

	"github.com/km-arc/tracker/framework/state"
	"github.com/km-arc/tracker/framework/viewmodel"
)

// ViewModel mirrors the library into a reactive view-model. It holds the
// stored key "songs" and the computed key "count", and follows every
// library mutation committed on the store.
type ViewModel struct {
	*viewmodel.ViewModel

	lib  *Library
	stop func()
}

// NewViewModel creates the view-model and loads the current songs. It fails
// when opts seed a stored "count" key.
func NewViewModel(lib *Library, opts ...viewmodel.Option) (*ViewModel, error) {
	vm := &ViewModel{
		ViewModel: viewmodel.New("library", opts...),
		lib:       lib,
	}
	err := vm.DefineComputed("count", func(v *viewmodel.ViewModel) any {
		songs, _ := viewmodel.Value[[]Song](v, "songs")
		return len(songs)
	})
	if err != nil {
		vm.ViewModel.Dispose()
		return nil, err
	}
	vm.SetSilent("songs", lib.Songs())
	vm.SaveSnapshot()

	vm.stop = lib.store.Subscribe(func(c state.Change) {
		if strings.HasPrefix(c.Mutation, "library/") {
			vm.Refresh()
		}
	})
	return vm, nil
}

// Refresh reloads the songs from the store.
func (vm *ViewModel) Refresh() {
	vm.Set("songs", vm.lib.Songs())
}

// Songs returns the mirrored songs.
func (vm *ViewModel) Songs() []Song {
	songs, _ := viewmodel.Value[[]Song](vm.ViewModel, "songs")
	return songs
}

// Count returns the number of songs.
func (vm *ViewModel) Count() int {
	n, _ := vm.Get("count").(int)
	return n
}

// Dispose stops following the store and disposes the view-model.
func (vm *ViewModel) Dispose() {
	if vm.stop != nil {
		vm.stop()
		vm.stop = nil
	}
	vm.ViewModel.Dispose()
}
