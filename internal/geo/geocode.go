package geo

import (
	"errors"
	"fmt"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/OmRanAlot/BrownHacks2026/internal/forecast"
)

var ErrNoAPIKey = errors.New("geocoder api key not configured")

// Address is the storefront address to resolve.
type Address struct {
	Street  string
	City    string
	Country string
}

// LookupFunc resolves an address to coordinates.
type LookupFunc func(geocoder.Address) (geocoder.Location, error)

// Resolver turns a storefront address into a forecast.Location using the
// Google geocoding API.
type Resolver struct {
	apiKey string
	lookup LookupFunc
}

// The geocoder package keeps its key in a package variable.
var keyMu sync.Mutex

func NewResolver(apiKey string) *Resolver {
	return &Resolver{
		apiKey: apiKey,
		lookup: func(a geocoder.Address) (geocoder.Location, error) {
			keyMu.Lock()
			defer keyMu.Unlock()
			geocoder.ApiKey = apiKey
			return geocoder.Geocoding(a)
		},
	}
}

// WithLookup replaces the geocoding call, mainly for tests.
func (r *Resolver) WithLookup(fn LookupFunc) *Resolver {
	r.lookup = fn
	return r
}

// Resolve returns the coordinates of addr, named name.
func (r *Resolver) Resolve(name string, addr Address) (forecast.Location, error) {
	if r.apiKey == "" {
		return forecast.Location{}, ErrNoAPIKey
	}
	if addr.Street == "" && addr.City == "" {
		return forecast.Location{}, errors.New("address is empty")
	}

	loc, err := r.lookup(geocoder.Address{
		Street:  addr.Street,
		City:    addr.City,
		Country: addr.Country,
	})
	if err != nil {
		return forecast.Location{}, fmt.Errorf("geocode %q: %w", addr.Street, err)
	}
	return forecast.Location{Name: name, Latitude: loc.Latitude, Longitude: loc.Longitude}, nil
}
