// Package library keeps the personal song library in the application
// state and exposes it through the command and query buses.
package library

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/km-arc/tracker/framework/bus"
	"github.com/km-arc/tracker/framework/http/validation"
	"github.com/km-arc/tracker/framework/state"
)

// Mutation names.
const (
	MutationAddSong    = "library/addSong"
	MutationRemoveSong = "library/removeSong"
)

// SongsPath is where the library lives in the state tree, keyed by song id.
const SongsPath = "library.songs"

var (
	ErrSongNotFound = errors.New("library: song not found")
	ErrBadPayload   = errors.New("library: unexpected mutation payload")
)

// Song is one library entry.
type Song struct {
	ID      string `json:"id" yaml:"id" toml:"id"`
	Title   string `json:"title" yaml:"title" toml:"title"`
	Artist  string `json:"artist" yaml:"artist" toml:"artist"`
	URL     string `json:"url,omitempty" yaml:"url,omitempty" toml:"url,omitempty"`
	AddedAt string `json:"addedAt" yaml:"addedAt" toml:"addedAt"`
}

type AddSongInput struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	URL    string `json:"url,omitempty"`
}

type RemoveSongInput struct {
	ID string `json:"id"`
}

// ListSongsInput filters song.list. An empty Artist lists everything.
type ListSongsInput struct {
	Artist string `json:"artist,omitempty"`
}

var (
	AddSong    = bus.NewCommand[AddSongInput, Song]("song.add")
	RemoveSong = bus.NewCommand[RemoveSongInput, Song]("song.remove")
	ListSongs  = bus.NewQuery[ListSongsInput, []Song]("song.list")
)

var (
	addSongRules = validation.Rules{
		"title":  "required|string|max:200",
		"artist": "required|string|max:200",
		"url":    "nullable|url",
	}
	removeSongRules = validation.Rules{
		"id": "required|alpha_dash",
	}
)

// Library reads and writes songs through a state store.
type Library struct {
	store *state.Store
	now   func() time.Time
}

// New creates a library backed by store.
func New(store *state.Store) *Library {
	return &Library{store: store, now: time.Now}
}

// Install registers the library mutations on the store and its handlers on
// the buses.
func (l *Library) Install(commands, queries *bus.Bus) error {
	if err := l.store.RegisterMutation(MutationAddSong, addSong); err != nil {
		return err
	}
	if err := l.store.RegisterMutation(MutationRemoveSong, removeSong); err != nil {
		return err
	}

	if err := bus.Handle(commands, AddSong, l.Add, validation.Payload[AddSongInput](addSongRules)); err != nil {
		return err
	}
	if err := bus.Handle(commands, RemoveSong, l.Remove, validation.Payload[RemoveSongInput](removeSongRules)); err != nil {
		return err
	}
	return bus.HandleQuery(queries, ListSongs, l.List)
}

// Add stores a new song and returns it.
func (l *Library) Add(ctx context.Context, in AddSongInput) (Song, error) {
	song := Song{
		ID:      uuid.NewString(),
		Title:   strings.TrimSpace(in.Title),
		Artist:  strings.TrimSpace(in.Artist),
		URL:     in.URL,
		AddedAt: l.now().UTC().Format(time.RFC3339Nano),
	}
	if err := l.store.Commit(ctx, MutationAddSong, song); err != nil {
		return Song{}, err
	}
	return song, nil
}

// Remove deletes a song and returns what was removed.
func (l *Library) Remove(ctx context.Context, in RemoveSongInput) (Song, error) {
	song, ok := l.Song(in.ID)
	if !ok {
		return Song{}, fmt.Errorf("%w: %s", ErrSongNotFound, in.ID)
	}
	if err := l.store.Commit(ctx, MutationRemoveSong, in.ID); err != nil {
		return Song{}, err
	}
	return song, nil
}

// List returns the songs, oldest first.
func (l *Library) List(_ context.Context, in ListSongsInput) ([]Song, error) {
	songs := l.Songs()
	if in.Artist == "" {
		return songs, nil
	}
	out := songs[:0]
	for _, s := range songs {
		if strings.EqualFold(s.Artist, in.Artist) {
			out = append(out, s)
		}
	}
	return out, nil
}

// Song looks up one song by id.
func (l *Library) Song(id string) (Song, bool) {
	if id == "" {
		return Song{}, false
	}
	v, ok := l.store.Lookup(SongsPath + "." + id)
	if !ok {
		return Song{}, false
	}
	return songFrom(v)
}

// Songs returns every song, oldest first.
func (l *Library) Songs() []Song {
	raw, _ := l.store.Get(SongsPath).(map[string]any)
	songs := make([]Song, 0, len(raw))
	for _, v := range raw {
		if s, ok := songFrom(v); ok {
			songs = append(songs, s)
		}
	}
	sort.Slice(songs, func(i, j int) bool {
		if songs[i].AddedAt != songs[j].AddedAt {
			return songs[i].AddedAt < songs[j].AddedAt
		}
		return songs[i].ID < songs[j].ID
	})
	return songs
}

// ── Mutations ─────────────────────────────────────────────────────────────────

func addSong(t state.Tree, payload any) error {
	song, ok := payload.(Song)
	if !ok || song.ID == "" {
		return fmt.Errorf("%w: %T", ErrBadPayload, payload)
	}
	return t.Set(SongsPath+"."+song.ID, map[string]any{
		"id":      song.ID,
		"title":   song.Title,
		"artist":  song.Artist,
		"url":     song.URL,
		"addedAt": song.AddedAt,
	})
}

func removeSong(t state.Tree, payload any) error {
	id, ok := payload.(string)
	if !ok || id == "" {
		return fmt.Errorf("%w: %T", ErrBadPayload, payload)
	}
	t.Delete(SongsPath + "." + id)
	return nil
}

func songFrom(v any) (Song, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return Song{}, false
	}
	str := func(k string) string {
		s, _ := m[k].(string)
		return s
	}
	return Song{
		ID:      str("id"),
		Title:   str("title"),
		Artist:  str("artist"),
		URL:     str("url"),
		AddedAt: str("addedAt"),
	}, true
}
