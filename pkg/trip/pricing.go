package trip

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Tier holds a league's ticket prices. Low is part of the table but no
// fixture is priced at it yet.
type Tier struct {
	Top float64 `koanf:"top" json:"top"`
	Mid float64 `koanf:"mid" json:"mid"`
	Low float64 `koanf:"low" json:"low"`
}

// Pricing estimates match ticket prices.
type Pricing struct {
	Leagues      map[string]Tier `koanf:"leagues" json:"leagues"`
	EliteTeams   []string        `koanf:"elite_teams" json:"elite_teams"`
	DefaultPrice float64         `koanf:"default_price" json:"default_price"`
}

// DefaultPricing returns the built-in tables.
func DefaultPricing() *Pricing {
	return &Pricing{
		Leagues: map[string]Tier{
			"Premier League": {Top: 80, Mid: 60, Low: 50},
			"La Liga":        {Top: 70, Mid: 50, Low: 40},
			"Serie A":        {Top: 60, Mid: 45, Low: 35},
			"Bundesliga":     {Top: 50, Mid: 40, Low: 30},
			"Ligue 1":        {Top: 55, Mid: 40, Low: 30},
		},
		EliteTeams: []string{
			"Manchester City", "Liverpool", "Arsenal", "Chelsea", "Manchester United",
			"Real Madrid", "Barcelona", "Atletico Madrid",
			"Juventus", "Inter", "AC Milan",
			"Bayern Munich", "Borussia Dortmund",
			"PSG", "Monaco",
		},
		DefaultPrice: 50,
	}
}

// Estimate returns the ticket price for a fixture. Unknown leagues get the
// flat default; a fixture with an elite team on either side is priced at
// the league's top tier, anything else at mid.
func (p *Pricing) Estimate(league, home, away string) float64 {
	tier, ok := p.Leagues[league]
	if !ok {
		return p.DefaultPrice
	}
	if p.IsElite(home) || p.IsElite(away) {
		return tier.Top
	}
	return tier.Mid
}

// IsElite reports whether team is in the elite list. Names match exactly.
func (p *Pricing) IsElite(team string) bool {
	return slices.Contains(p.EliteTeams, team)
}

// LoadPricing layers the YAML file at path over DefaultPricing. League
// entries merge by name; elite_teams replaces the built-in list. An empty
// path returns the defaults.
func LoadPricing(path string) (*Pricing, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(pricingToMap(DefaultPricing()), "."), nil); err != nil {
		return nil, fmt.Errorf("pricing: load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("pricing: file %s not found", path)
			}
			return nil, fmt.Errorf("pricing: stat %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("pricing: load file %s: %w", path, err)
		}
	}

	var p Pricing
	if err := k.Unmarshal("", &p); err != nil {
		return nil, fmt.Errorf("pricing: unmarshal: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate rejects negative prices.
func (p *Pricing) Validate() error {
	if p.DefaultPrice < 0 {
		return fmt.Errorf("pricing: default_price must not be negative")
	}
	for name, t := range p.Leagues {
		if t.Top < 0 || t.Mid < 0 || t.Low < 0 {
			return fmt.Errorf("pricing: league %q has a negative price", name)
		}
	}
	return nil
}

func pricingToMap(p *Pricing) map[string]any {
	leagues := make(map[string]any, len(p.Leagues))
	for name, t := range p.Leagues {
		leagues[name] = map[string]any{"top": t.Top, "mid": t.Mid, "low": t.Low}
	}
	return map[string]any{
		"leagues":       leagues,
		"elite_teams":   slices.Clone(p.EliteTeams),
		"default_price": p.DefaultPrice,
	}
}
