package database

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed seed/catalog.yaml
var defaultCatalog []byte

// Catalog is the YAML document read by the seed command.
type Catalog struct {
	Games []CatalogGame `yaml:"games"`
}

// CatalogGame is one game entry. Available defaults to true when omitted.
type CatalogGame struct {
	Name        string   `yaml:"name"`
	Category    string   `yaml:"category"`
	Summary     string   `yaml:"summary"`
	Description string   `yaml:"description"`
	HowToPlay   string   `yaml:"how_to_play"`
	Price       string   `yaml:"price"`
	Players     string   `yaml:"players"`
	Duration    string   `yaml:"duration"`
	Stock       int      `yaml:"stock"`
	Available   *bool    `yaml:"available"`
	Images      []string `yaml:"images"`
	Rules       []string `yaml:"rules"`
}

// LoadCatalog reads a catalog file, or the embedded demo catalog when path
// is empty.
func LoadCatalog(path string) (Catalog, error) {
	raw := defaultCatalog
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Catalog{}, fmt.Errorf("read catalog: %w", err)
		}
		raw = b
	}
	return ParseCatalog(raw)
}

// ParseCatalog decodes and validates a catalog document.
func ParseCatalog(raw []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	seen := make(map[string]bool, len(c.Games))
	for i, g := range c.Games {
		name := strings.TrimSpace(g.Name)
		if name == "" {
			return Catalog{}, fmt.Errorf("catalog game %d: name required", i+1)
		}
		if seen[name] {
			return Catalog{}, fmt.Errorf("catalog game %q: duplicate name", name)
		}
		seen[name] = true
		price, err := decimal.NewFromString(g.Price)
		if err != nil || !price.IsPositive() {
			return Catalog{}, fmt.Errorf("catalog game %q: price must be a positive decimal", name)
		}
		if g.Stock < 0 {
			return Catalog{}, fmt.Errorf("catalog game %q: stock must not be negative", name)
		}
	}
	return c, nil
}

// Seed upserts every catalog game by name and replaces its images and
// rules. It runs in one transaction and returns the number of games written.
func Seed(ctx context.Context, db *DB, c Catalog) (int, error) {
	tx, err := db.BeginWrite(ctx)
	if err != nil {
		return 0, err
	}
	// roll back unless every game was written
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, g := range c.Games {
		available := true
		if g.Available != nil {
			available = *g.Available
		}
		// ParseCatalog has already validated the price
		price, _ := decimal.NewFromString(g.Price)
		name := strings.TrimSpace(g.Name)

		// upsert by name: insert when new, update in place otherwise
		var id uint64
		err := tx.GetContext(ctx, &id, "SELECT id FROM games WHERE name = ?", name)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			res, err := tx.ExecContext(ctx,
				`INSERT INTO games (name, category, summary, description, how_to_play, price, players, duration, stock, available)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				name, g.Category, g.Summary, g.Description, g.HowToPlay, price, g.Players, g.Duration, g.Stock, available)
			if err != nil {
				return 0, fmt.Errorf("insert game %q: %w", name, err)
			}
			last, err := res.LastInsertId()
			if err != nil {
				return 0, err
			}
			id = uint64(last)
		case err != nil:
			return 0, fmt.Errorf("lookup game %q: %w", name, err)
		default:
			if _, err := tx.ExecContext(ctx,
				`UPDATE games SET category = ?, summary = ?, description = ?, how_to_play = ?, price = ?,
				 players = ?, duration = ?, stock = ?, available = ? WHERE id = ?`,
				g.Category, g.Summary, g.Description, g.HowToPlay, price, g.Players, g.Duration, g.Stock, available, id); err != nil {
				return 0, fmt.Errorf("update game %q: %w", name, err)
			}
		}

		// images and rules are replaced wholesale, keeping file order
		if _, err := tx.ExecContext(ctx, "DELETE FROM game_images WHERE game_id = ?", id); err != nil {
			return 0, err
		}
		for i, url := range g.Images {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO game_images (game_id, image_url, display_order) VALUES (?, ?, ?)", id, url, i+1); err != nil {
				return 0, fmt.Errorf("insert image for %q: %w", name, err)
			}
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM game_rules WHERE game_id = ?", id); err != nil {
			return 0, err
		}
		for i, rule := range g.Rules {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO game_rules (game_id, rule_text, rule_order) VALUES (?, ?, ?)", id, rule, i+1); err != nil {
				return 0, fmt.Errorf("insert rule for %q: %w", name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return len(c.Games), nil
}
