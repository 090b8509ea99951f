package browser

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/go-rod/rod/lib/proto"
)

// IdentityState holds a previously captured authenticated browser state,
// in the storage-state JSON layout: top-level cookie list plus per-origin
// localStorage entries.
type IdentityState struct {
	Cookies []StateCookie `json:"cookies"`
	Origins []StateOrigin `json:"origins"`
}

// StateCookie is one cookie from a storage-state file. Expires is a unix
// timestamp in seconds; -1 means a session cookie.
type StateCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite"`
}

// StateOrigin groups localStorage entries for one origin.
type StateOrigin struct {
	Origin       string         `json:"origin"`
	LocalStorage []StorageEntry `json:"localStorage"`
}

// StorageEntry is a single localStorage key/value pair.
type StorageEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// LoadIdentityState reads and parses a storage-state file.
func LoadIdentityState(path string) (*IdentityState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read identity state: %w", err)
	}

	var state IdentityState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse identity state %s: %w", path, err)
	}
	return &state, nil
}

// CookieParams converts the stored cookies into browser cookie parameters.
func (s *IdentityState) CookieParams() []*proto.NetworkCookieParam {
	params := make([]*proto.NetworkCookieParam, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: sameSiteFromState(c.SameSite),
		}
		if c.Expires > 0 {
			p.Expires = proto.TimeSinceEpoch(c.Expires)
		}
		params = append(params, p)
	}
	return params
}

// StorageFor returns the localStorage entries recorded for origin, matching
// case-insensitively and ignoring a trailing slash.
func (s *IdentityState) StorageFor(origin string) []StorageEntry {
	want := normalizeOrigin(origin)
	for _, o := range s.Origins {
		if normalizeOrigin(o.Origin) == want {
			return o.LocalStorage
		}
	}
	return nil
}

func normalizeOrigin(origin string) string {
	return strings.ToLower(strings.TrimSuffix(origin, "/"))
}

func sameSiteFromState(v string) proto.NetworkCookieSameSite {
	switch strings.ToLower(v) {
	case "strict":
		return proto.NetworkCookieSameSiteStrict
	case "none":
		return proto.NetworkCookieSameSiteNone
	case "lax":
		return proto.NetworkCookieSameSiteLax
	default:
		return ""
	}
}

// encodeStorageEntries marshals entries as a JSON array of [name, value]
// pairs for handoff into a page script.
func encodeStorageEntries(entries []StorageEntry) string {
	pairs := make([][2]string, 0, len(entries))
	for _, e := range entries {
		pairs = append(pairs, [2]string{e.Name, e.Value})
	}
	data, err := json.Marshal(pairs)
	if err != nil {
		return "[]"
	}
	return string(data)
}
