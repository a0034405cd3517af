package world

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// zoneDocument is the on-disk shape of one zone file. Unknown keys are rejected.
type zoneDocument struct {
	Zone struct {
		ID                     string     `yaml:"id"`
		Name                   string     `yaml:"name"`
		Description            string     `yaml:"description"`
		StartRoom              string     `yaml:"start_room"`
		ScriptDir              string     `yaml:"script_dir"`
		ScriptInstructionLimit int        `yaml:"script_instruction_limit"`
		Rooms                  []roomNode `yaml:"rooms"`
	} `yaml:"zone"`
}

type roomNode struct {
	ID          string            `yaml:"id"`
	Title       string            `yaml:"title"`
	Description string            `yaml:"description"`
	Exits       []exitNode        `yaml:"exits"`
	Properties  map[string]string `yaml:"properties"`
}

type exitNode struct {
	Direction string `yaml:"direction"`
	Target    string `yaml:"target"`
	Locked    bool   `yaml:"locked"`
	Hidden    bool   `yaml:"hidden"`
}

// isZoneFile reports whether name has a YAML extension.
func isZoneFile(name string) bool {
	ext := strings.ToLower(path.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// LoadZoneFromBytes decodes and validates one zone document.
//
// Postcondition: Returns a validated Zone or a non-nil error.
func LoadZoneFromBytes(data []byte) (*Zone, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc zoneDocument
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty zone document", ErrInvalidZone)
		}
		return nil, fmt.Errorf("parsing zone YAML: %w", err)
	}

	zone, err := doc.build()
	if err != nil {
		return nil, err
	}
	if err := zone.Validate(); err != nil {
		return nil, fmt.Errorf("validating zone: %w", err)
	}
	return zone, nil
}

// build converts the document to a Zone. Room IDs must be unique within the
// file; direction names are normalized through ParseDirection.
func (d zoneDocument) build() (*Zone, error) {
	z := d.Zone
	zone := &Zone{
		ID:                     z.ID,
		Name:                   z.Name,
		Description:            strings.TrimSpace(z.Description),
		StartRoom:              z.StartRoom,
		ScriptDir:              z.ScriptDir,
		ScriptInstructionLimit: z.ScriptInstructionLimit,
		Rooms:                  make(map[string]*Room, len(z.Rooms)),
	}

	for _, rn := range z.Rooms {
		if _, dup := zone.Rooms[rn.ID]; dup {
			return nil, fmt.Errorf("%w: zone %q: room %q declared twice", ErrInvalidZone, z.ID, rn.ID)
		}
		room := &Room{
			ID:          rn.ID,
			ZoneID:      z.ID,
			Title:       strings.TrimSpace(rn.Title),
			Description: strings.TrimSpace(rn.Description),
			Properties:  rn.Properties,
			Exits:       make([]Exit, 0, len(rn.Exits)),
		}
		if room.Properties == nil {
			room.Properties = map[string]string{}
		}
		for _, en := range rn.Exits {
			dir, _ := ParseDirection(en.Direction)
			room.Exits = append(room.Exits, Exit{
				Direction:  dir,
				TargetRoom: en.Target,
				Locked:     en.Locked,
				Hidden:     en.Hidden,
			})
		}
		zone.Rooms[room.ID] = room
	}
	return zone, nil
}

// LoadZonesFS loads every YAML file at the root of fsys, in file name order.
// Relative script_dir values stay relative to that root.
//
// Postcondition: Returns at least one validated zone or a non-nil error.
func LoadZonesFS(fsys fs.FS) ([]*Zone, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("listing zone files: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && isZoneFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	if len(names) == 0 {
		return nil, errors.New("no zone files found")
	}

	zones := make([]*Zone, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("reading zone file %s: %w", name, err)
		}
		zone, err := LoadZoneFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading zone from %s: %w", name, err)
		}
		zones = append(zones, zone)
	}
	return zones, nil
}

// LoadZoneFromFile reads one zone file. A relative script_dir is resolved
// against the file's directory.
func LoadZoneFromFile(file string) (*Zone, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading zone file %s: %w", file, err)
	}
	zone, err := LoadZoneFromBytes(data)
	if err != nil {
		return nil, err
	}
	resolveScriptDir(zone, filepath.Dir(file))
	return zone, nil
}

// LoadZonesFromDir loads every zone file in dir. Relative script_dir values
// are resolved against dir.
func LoadZonesFromDir(dir string) ([]*Zone, error) {
	zones, err := LoadZonesFS(os.DirFS(dir))
	if err != nil {
		return nil, fmt.Errorf("zone directory %s: %w", dir, err)
	}
	for _, z := range zones {
		resolveScriptDir(z, dir)
	}
	return zones, nil
}

func resolveScriptDir(z *Zone, base string) {
	if z.ScriptDir != "" && !filepath.IsAbs(z.ScriptDir) {
		z.ScriptDir = filepath.Join(base, z.ScriptDir)
	}
}
