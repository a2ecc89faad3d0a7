package geodata

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shuv1824/kisan/internal/types"
)

var ErrUnknownDistrict = errors.New("unknown district")

// Registry maps district names and ids to coordinates. It is read-only
// after loading.
type Registry struct {
	districts []types.District
	index     map[string]types.District
}

// Load reads a districts JSON file.
func Load(path string) (*Registry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return r, nil
}

// Parse decodes {"districts": [...]} with string coordinates. Rows with
// unparseable coordinates are skipped.
func Parse(rd io.Reader) (*Registry, error) {
	var raw types.GeoData
	if err := json.NewDecoder(rd).Decode(&raw); err != nil {
		return nil, err
	}

	r := &Registry{
		districts: make([]types.District, 0, len(raw.Districts)),
		index:     make(map[string]types.District, 2*len(raw.Districts)),
	}
	for _, d := range raw.Districts {
		lat, err := strconv.ParseFloat(d.Lat, 64)
		if err != nil {
			continue
		}
		long, err := strconv.ParseFloat(d.Long, 64)
		if err != nil {
			continue
		}

		district := types.District{
			ID:    d.ID,
			State: d.State,
			Name:  d.Name,
			Lat:   lat,
			Long:  long,
		}
		r.districts = append(r.districts, district)
		r.index[normalize(d.Name)] = district
		if d.ID != "" {
			r.index[normalize(d.ID)] = district
		}
	}
	return r, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Lookup finds a district by name or id, ignoring case.
func (r *Registry) Lookup(name string) (types.District, error) {
	if d, ok := r.index[normalize(name)]; ok {
		return d, nil
	}
	return types.District{}, fmt.Errorf("%w: %q", ErrUnknownDistrict, name)
}

func (r *Registry) Districts() []types.District {
	return append([]types.District(nil), r.districts...)
}

func (r *Registry) Len() int {
	return len(r.districts)
}
