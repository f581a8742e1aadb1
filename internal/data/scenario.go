package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FleetEntry defines one fleet: where its ships appear, how many are kept
// alive, and the stats every ship of the fleet starts with.
type FleetEntry struct {
	Name         string     `yaml:"name"`
	Faction      int        `yaml:"faction"`
	Population   int        `yaml:"population"`
	SpawnRate    int        `yaml:"spawn_rate"` // max ships created per frame, 0 = no limit
	Origin       [2]float32 `yaml:"origin"`
	Spread       float32    `yaml:"spread"` // spawn box half extent around origin
	Speed        float32    `yaml:"speed"`  // initial speed, random heading
	MaxSpeed     float32    `yaml:"max_speed"`
	Lifetime     [2]float32 `yaml:"lifetime"` // seconds, min and max; zeros live forever
	Radius       float32    `yaml:"radius"`
	SensorRadius float32    `yaml:"sensor_radius"`
	TargetRadius float32    `yaml:"target_radius"` // 0 disables targeting
	Callsign     string     `yaml:"callsign"`      // printf pattern taking the ship number
}

type scenarioFile struct {
	Name   string       `yaml:"name"`
	Fleets []FleetEntry `yaml:"fleets"`
}

// Scenario is the fleet table a run is seeded from.
type Scenario struct {
	name   string
	fleets []FleetEntry
	byName map[string]*FleetEntry
}

// LoadScenario loads a scenario yaml file.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(raw)
}

// ParseScenario parses scenario yaml and validates every fleet.
func ParseScenario(raw []byte) (*Scenario, error) {
	var f scenarioFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	s := &Scenario{
		name:   f.Name,
		fleets: f.Fleets,
		byName: make(map[string]*FleetEntry, len(f.Fleets)),
	}
	for i := range s.fleets {
		e := &s.fleets[i]
		if err := e.validate(); err != nil {
			return nil, fmt.Errorf("fleet %d (%s): %w", i, e.Name, err)
		}
		if _, dup := s.byName[e.Name]; dup {
			return nil, fmt.Errorf("fleet %q defined twice", e.Name)
		}
		if e.Callsign == "" {
			e.Callsign = e.Name + "-%d"
		}
		s.byName[e.Name] = e
	}
	return s, nil
}

func (e *FleetEntry) validate() error {
	switch {
	case e.Name == "":
		return fmt.Errorf("missing name")
	case e.Population < 0 || e.SpawnRate < 0:
		return fmt.Errorf("negative population or spawn rate")
	case e.MaxSpeed <= 0:
		return fmt.Errorf("max_speed must be positive")
	case e.Lifetime[0] < 0 || e.Lifetime[1] < e.Lifetime[0]:
		return fmt.Errorf("lifetime range [%g, %g] is invalid", e.Lifetime[0], e.Lifetime[1])
	case e.SensorRadius <= 0:
		return fmt.Errorf("sensor_radius must be positive")
	case e.Spread < 0 || e.TargetRadius < 0 || e.Radius < 0:
		return fmt.Errorf("negative spread or radius")
	}
	return nil
}

func (s *Scenario) Name() string { return s.name }

// Fleets returns the fleets in file order.
func (s *Scenario) Fleets() []FleetEntry { return s.fleets }

// Get returns the named fleet, or nil.
func (s *Scenario) Get(name string) *FleetEntry { return s.byName[name] }

// Count returns the number of fleets loaded.
func (s *Scenario) Count() int { return len(s.fleets) }

// Population returns the total number of ships the scenario keeps alive.
func (s *Scenario) Population() int {
	n := 0
	for _, f := range s.fleets {
		n += f.Population
	}
	return n
}
