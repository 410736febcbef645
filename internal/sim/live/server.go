// Package live is the in-process game runtime: loaded worlds, online players
// and their level data on disk. Everything here runs on the primary context.
package live

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"voxelworlds.ai/internal/persistence/snapshot"
	"voxelworlds.ai/internal/protocol"
	"voxelworlds.ai/internal/worldcfg"
)

var (
	ErrInvalidWorldName = errors.New("invalid world name")
	ErrWorldLoaded      = errors.New("world already loaded")
	ErrWorldNotLoaded   = errors.New("world not loaded")
	ErrWorldDataExists  = errors.New("world data already exists")
	ErrNoWorldData      = errors.New("world data not found")
	ErrWorldOccupied    = errors.New("world has players")
	ErrPlayerOnline     = errors.New("player already online")
)

type Options struct {
	// Container is the directory holding one subdirectory per world.
	Container string
	// MainWorld receives players that join without a (loaded) world.
	MainWorld string
	Log       *slog.Logger
}

type Server struct {
	container string
	mainWorld string
	log       *slog.Logger

	worlds  map[string]*World
	players map[string]*Player

	onJoin   []func(p *Player)
	onChange []func(p *Player, from, to string)
}

func NewServer(opts Options) *Server {
	logger := opts.Log
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		container: opts.Container,
		mainWorld: opts.MainWorld,
		log:       logger,
		worlds:    map[string]*World{},
		players:   map[string]*Player{},
	}
}

func (s *Server) Container() string { return s.container }
func (s *Server) MainWorld() string { return s.mainWorld }

// OnJoin registers fn to run after a player joined.
func (s *Server) OnJoin(fn func(p *Player)) { s.onJoin = append(s.onJoin, fn) }

// OnWorldChange registers fn to run after a player moved between worlds.
func (s *Server) OnWorldChange(fn func(p *Player, from, to string)) {
	s.onChange = append(s.onChange, fn)
}

func validWorldName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || !filepath.IsLocal(name) {
		return fmt.Errorf("%w: %q", ErrInvalidWorldName, name)
	}
	return nil
}

// World returns a loaded world.
func (s *Server) World(name string) (*World, bool) {
	w, ok := s.worlds[name]
	return w, ok
}

// Worlds returns every loaded world sorted by name.
func (s *Server) Worlds() []*World {
	out := make([]*World, 0, len(s.worlds))
	for _, name := range slices.Sorted(maps.Keys(s.worlds)) {
		out = append(out, s.worlds[name])
	}
	return out
}

// WorldDataExists reports whether a world directory exists in the container.
func (s *Server) WorldDataExists(name string) bool {
	if validWorldName(name) != nil {
		return false
	}
	fi, err := os.Stat(filepath.Join(s.container, name))
	return err == nil && fi.IsDir()
}

// LoadWorld loads name from the container. A directory without level data
// is initialized with default creation parameters.
func (s *Server) LoadWorld(name string) (*World, error) {
	if err := validWorldName(name); err != nil {
		return nil, err
	}
	if w, ok := s.worlds[name]; ok {
		return w, nil
	}
	if !s.WorldDataExists(name) {
		return nil, fmt.Errorf("%w: %s", ErrNoWorldData, name)
	}
	path := snapshot.LevelPath(s.container, name)
	lvl, err := snapshot.ReadLevel(path)
	var w *World
	switch {
	case err == nil:
		w = worldFromLevel(name, lvl)
	case errors.Is(err, fs.ErrNotExist):
		w = newWorld(worldcfg.WorldCreator{
			Name:               name,
			Environment:        worldcfg.EnvNormal,
			Type:               worldcfg.TypeNormal,
			GenerateStructures: true,
		})
		if err := snapshot.WriteLevel(path, w.level()); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("load world %s: %w", name, err)
	}
	s.worlds[name] = w
	s.log.Info("world loaded", "world", name, "seed", w.seed)
	return w, nil
}

// CreateWorld creates and loads a brand new world.
func (s *Server) CreateWorld(c worldcfg.WorldCreator) (*World, error) {
	if err := validWorldName(c.Name); err != nil {
		return nil, err
	}
	if _, ok := s.worlds[c.Name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrWorldLoaded, c.Name)
	}
	if s.WorldDataExists(c.Name) {
		return nil, fmt.Errorf("%w: %s", ErrWorldDataExists, c.Name)
	}
	w := newWorld(c)
	if err := snapshot.WriteLevel(snapshot.LevelPath(s.container, c.Name), w.level()); err != nil {
		return nil, err
	}
	s.worlds[c.Name] = w
	s.log.Info("world created", "world", c.Name, "environment", c.Environment, "type", c.Type)
	return w, nil
}

// UnloadWorld drops a loaded world, saving its level data first when save is
// set. Worlds with players in them stay loaded.
func (s *Server) UnloadWorld(name string, save bool) error {
	w, ok := s.worlds[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrWorldNotLoaded, name)
	}
	if len(s.PlayersIn(name)) > 0 {
		return fmt.Errorf("%w: %s", ErrWorldOccupied, name)
	}
	if save {
		if err := s.SaveWorld(w); err != nil {
			return err
		}
	}
	delete(s.worlds, name)
	s.log.Info("world unloaded", "world", name, "saved", save)
	return nil
}

func (s *Server) SaveWorld(w *World) error {
	return snapshot.WriteLevel(snapshot.LevelPath(s.container, w.name), w.level())
}

// SaveAll writes level data for every loaded world.
func (s *Server) SaveAll() error {
	var errs []error
	for _, w := range s.Worlds() {
		if err := s.SaveWorld(w); err != nil {
			errs = append(errs, fmt.Errorf("save %s: %w", w.name, err))
		}
	}
	return errors.Join(errs...)
}

// Tick advances every loaded world by n ticks.
func (s *Server) Tick(n int64) {
	for _, w := range s.worlds {
		w.tick(n)
	}
}

// Join brings a player online in world, or in the main world when world is
// empty or not loaded.
func (s *Server) Join(name string, admin bool, world string) (*Player, error) {
	if _, ok := s.players[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrPlayerOnline, name)
	}
	w, ok := s.worlds[world]
	if !ok {
		if w, ok = s.worlds[s.mainWorld]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrWorldNotLoaded, s.mainWorld)
		}
	}
	p := newPlayer(name, admin, w.SpawnLocation())
	s.players[name] = p
	s.log.Info("player joined", "player", name, "world", w.name, "admin", admin)
	for _, fn := range s.onJoin {
		fn(p)
	}
	return p, nil
}

// Leave takes a player offline.
func (s *Server) Leave(name string) {
	if _, ok := s.players[name]; !ok {
		return
	}
	delete(s.players, name)
	s.log.Info("player left", "player", name)
}

func (s *Server) Player(name string) (*Player, bool) {
	p, ok := s.players[name]
	return p, ok
}

// OnlinePlayers returns every online player sorted by name.
func (s *Server) OnlinePlayers() []*Player {
	out := make([]*Player, 0, len(s.players))
	for _, name := range slices.Sorted(maps.Keys(s.players)) {
		out = append(out, s.players[name])
	}
	return out
}

// PlayersIn returns the online players currently in world, sorted by name.
func (s *Server) PlayersIn(world string) []*Player {
	var out []*Player
	for _, p := range s.OnlinePlayers() {
		if p.loc.World == world {
			out = append(out, p)
		}
	}
	return out
}

// Teleport moves p to loc. World change listeners run when the world differs.
func (s *Server) Teleport(p *Player, loc worldcfg.Location) error {
	if _, ok := s.worlds[loc.World]; !ok {
		return fmt.Errorf("%w: %s", ErrWorldNotLoaded, loc.World)
	}
	from := p.loc.World
	p.loc = loc
	p.Send(protocol.TeleportMsg{
		Type:  protocol.TypeTeleport,
		World: loc.World,
		Pos:   [3]float64(loc.Pos),
		Yaw:   loc.Yaw,
		Pitch: loc.Pitch,
	})
	if from == loc.World {
		return nil
	}
	for _, fn := range s.onChange {
		fn(p, from, loc.World)
	}
	return nil
}
