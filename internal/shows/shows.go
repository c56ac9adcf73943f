// Package shows tracks watch progress for followed shows in the
// application state.
package shows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/km-arc/tracker/framework/bus"
	"github.com/km-arc/tracker/framework/http/validation"
	"github.com/km-arc/tracker/framework/state"
)

// Mutation names.
const (
	MutationTrack           = "shows/track"
	MutationProgressEpisode = "shows/progressEpisode"
)

// Path is where shows live in the state tree, keyed by id.
const Path = "shows"

var (
	ErrShowNotFound = errors.New("shows: show not found")
	ErrFinished     = errors.New("shows: every episode already watched")
	ErrBadPayload   = errors.New("shows: unexpected mutation payload")
)

// Show is a followed show. Episodes is zero when the total is unknown.
type Show struct {
	ID       string `json:"id" yaml:"id" toml:"id"`
	Title    string `json:"title" yaml:"title" toml:"title"`
	Watched  int    `json:"watched" yaml:"watched" toml:"watched"`
	Episodes int    `json:"episodes,omitempty" yaml:"episodes,omitempty" toml:"episodes,omitempty"`
}

// Finished reports whether every known episode has been watched.
func (s Show) Finished() bool {
	return s.Episodes > 0 && s.Watched >= s.Episodes
}

type TrackInput struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Episodes int    `json:"episodes,omitempty"`
}

type ShowInput struct {
	ID string `json:"id"`
}

var (
	Track           = bus.NewCommand[TrackInput, Show]("show.track")
	ProgressEpisode = bus.NewCommand[ShowInput, Show]("show.progressEpisode")
	Get             = bus.NewQuery[ShowInput, Show]("show.get")
	List            = bus.NewQuery[struct{}, []Show]("show.list")
)

var (
	trackRules = validation.Rules{
		"id":       "required|alpha_dash|max:100",
		"title":    "required|max:200",
		"episodes": "sometimes|integer|gte:0",
	}
	idRules = validation.Rules{
		"id": "required|alpha_dash",
	}
)

// Tracker reads and writes shows through a state store.
type Tracker struct {
	store *state.Store
}

// New creates a tracker backed by store.
func New(store *state.Store) *Tracker {
	return &Tracker{store: store}
}

// Install registers the show mutations on the store and its handlers on
// the buses.
func (t *Tracker) Install(commands, queries *bus.Bus) error {
	if err := t.store.RegisterMutation(MutationTrack, track); err != nil {
		return err
	}
	if err := t.store.RegisterMutation(MutationProgressEpisode, progressEpisode); err != nil {
		return err
	}

	validID := validation.Payload[ShowInput](idRules)
	if err := bus.Handle(commands, Track, t.Track, validation.Payload[TrackInput](trackRules)); err != nil {
		return err
	}
	if err := bus.Handle(commands, ProgressEpisode, t.ProgressEpisode, validID); err != nil {
		return err
	}
	if err := bus.HandleQuery(queries, Get, t.Get, validID); err != nil {
		return err
	}
	return bus.HandleQuery(queries, List, func(context.Context, struct{}) ([]Show, error) {
		return t.Shows(), nil
	})
}

// Track starts following a show, or updates its title and episode count
// while keeping the progress.
func (t *Tracker) Track(ctx context.Context, in TrackInput) (Show, error) {
	show := Show{ID: in.ID, Title: in.Title, Episodes: in.Episodes}
	if err := t.store.Commit(ctx, MutationTrack, show); err != nil {
		return Show{}, err
	}
	return t.committed(show.ID)
}

// ProgressEpisode marks the next episode of a show as watched. It fails
// with ErrFinished once every known episode is watched.
func (t *Tracker) ProgressEpisode(ctx context.Context, in ShowInput) (Show, error) {
	if err := t.store.Commit(ctx, MutationProgressEpisode, in.ID); err != nil {
		return Show{}, err
	}
	return t.committed(in.ID)
}

func (t *Tracker) committed(id string) (Show, error) {
	show, ok := t.Show(id)
	if !ok {
		return Show{}, fmt.Errorf("%w: %s", ErrShowNotFound, id)
	}
	return show, nil
}

// Get returns one show.
func (t *Tracker) Get(_ context.Context, in ShowInput) (Show, error) {
	show, ok := t.Show(in.ID)
	if !ok {
		return Show{}, fmt.Errorf("%w: %s", ErrShowNotFound, in.ID)
	}
	return show, nil
}

// Show looks up one show by id.
func (t *Tracker) Show(id string) (Show, bool) {
	if id == "" {
		return Show{}, false
	}
	v, ok := t.store.Lookup(Path + "." + id)
	if !ok {
		return Show{}, false
	}
	return showFrom(v)
}

// Shows returns every followed show ordered by id.
func (t *Tracker) Shows() []Show {
	raw, _ := t.store.Get(Path).(map[string]any)
	out := make([]Show, 0, len(raw))
	for _, v := range raw {
		if s, ok := showFrom(v); ok {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ── Mutations ─────────────────────────────────────────────────────────────────

func track(st state.Tree, payload any) error {
	show, ok := payload.(Show)
	if !ok || show.ID == "" {
		return fmt.Errorf("%w: %T", ErrBadPayload, payload)
	}
	if prev, ok := showFrom(st.Get(Path + "." + show.ID)); ok {
		show.Watched = prev.Watched
	}
	return st.Set(Path+"."+show.ID, map[string]any{
		"id":       show.ID,
		"title":    show.Title,
		"watched":  show.Watched,
		"episodes": show.Episodes,
	})
}

func progressEpisode(st state.Tree, payload any) error {
	id, ok := payload.(string)
	if !ok || id == "" {
		return fmt.Errorf("%w: %T", ErrBadPayload, payload)
	}
	show, ok := showFrom(st.Get(Path + "." + id))
	if !ok {
		return fmt.Errorf("%w: %s", ErrShowNotFound, id)
	}
	if show.Finished() {
		return fmt.Errorf("%w: %s", ErrFinished, id)
	}
	return st.Set(Path+"."+id+".watched", show.Watched+1)
}

func showFrom(v any) (Show, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return Show{}, false
	}
	id, _ := m["id"].(string)
	title, _ := m["title"].(string)
	return Show{
		ID:       id,
		Title:    title,
		Watched:  toInt(m["watched"]),
		Episodes: toInt(m["episodes"]),
	}, true
}

// toInt accepts the numeric shapes a tree holds: ints set by mutations and
// float64 or json.Number after a JSON round trip.
func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	}
	return 0
}
