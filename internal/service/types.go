package service

import (
	"fmt"
	"math"

	"github.com/goccy/go-json"

	"github.com/abelbrown/tracklens/internal/dataset"
)

// Track is one of the user's tracks. The service sends audio features as
// flat numeric keys next to the descriptive ones; they are collected into
// Features and written back out flat.
type Track struct {
	ID          string
	Name        string
	Artist      string
	AlbumCover  string
	ExternalURL string

	// Cluster is only meaningful when Clustered is set.
	Cluster   int
	Clustered bool

	Features map[string]float64
}

func (t *Track) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Track{Features: make(map[string]float64, len(raw))}
	for k, v := range raw {
		var err error
		switch k {
		case "id":
			err = json.Unmarshal(v, &t.ID)
		case "name":
			err = json.Unmarshal(v, &t.Name)
		case "artist":
			err = json.Unmarshal(v, &t.Artist)
		case "album_cover":
			err = json.Unmarshal(v, &t.AlbumCover)
		case "external_url":
			err = json.Unmarshal(v, &t.ExternalURL)
		case "cluster":
			t.Cluster, t.Clustered, err = clusterID(v)
		default:
			if f, ok := number(v); ok {
				t.Features[k] = f
			}
		}
		if err != nil {
			return fmt.Errorf("track field %q: %w", k, err)
		}
	}
	return nil
}

func (t Track) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(t.Features)+6)
	for k, v := range t.Features {
		out[k] = v
	}
	out["id"] = t.ID
	out["name"] = t.Name
	out["artist"] = t.Artist
	if t.AlbumCover != "" {
		out["album_cover"] = t.AlbumCover
	}
	if t.ExternalURL != "" {
		out["external_url"] = t.ExternalURL
	}
	if t.Clustered {
		out["cluster"] = t.Cluster
	}
	return json.Marshal(out)
}

// Center is a cluster centroid as returned by the service.
type Center struct {
	Cluster  int
	Features map[string]float64
}

func (c *Center) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Center{Features: make(map[string]float64, len(raw))}
	found := false
	for k, v := range raw {
		switch k {
		case "cluster_id", "cluster":
			id, ok, err := clusterID(v)
			if err != nil {
				return fmt.Errorf("center field %q: %w", k, err)
			}
			if ok {
				c.Cluster, found = id, true
			}
		default:
			if f, ok := number(v); ok {
				c.Features[k] = f
			}
		}
	}
	if !found {
		return fmt.Errorf("center without cluster_id: %w", ErrMalformed)
	}
	return nil
}

func (c Center) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Features)+1)
	for k, v := range c.Features {
		out[k] = v
	}
	out["cluster_id"] = c.Cluster
	return json.Marshal(out)
}

func number(v json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return 0, false
	}
	if len(v) == 0 || v[0] == 'n' || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func clusterID(v json.RawMessage) (int, bool, error) {
	if string(v) == "null" {
		return 0, false, nil
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return 0, false, err
	}
	if f != math.Trunc(f) || f < 0 {
		return 0, false, fmt.Errorf("cluster id %v: %w", f, ErrMalformed)
	}
	return int(f), true, nil
}

// ClusterRequest is the body of POST /cluster.
type ClusterRequest struct {
	Tracks    []Track  `json:"tracks"`
	NClusters int      `json:"n_clusters"`
	Features  []string `json:"features"`
}

// ClusterResponse is the body returned by POST /cluster.
type ClusterResponse struct {
	ClusteredTracks   []Track  `json:"clustered_tracks"`
	ClusterCenters    []Center `json:"cluster_centers"`
	VisualizationData []Track  `json:"visualization_data"`
	Inertia           float64  `json:"inertia"`
	FeaturesUsed      []string `json:"features_used"`
}

// Input converts the response into snapshot construction input.
// visualization_data is used when clustered_tracks is absent.
func (r *ClusterResponse) Input(requested int) (dataset.Input, error) {
	tracks := r.ClusteredTracks
	if len(tracks) == 0 {
		tracks = r.VisualizationData
	}
	in := dataset.Input{
		Items:        make([]dataset.RawItem, 0, len(tracks)),
		Centers:      make([]dataset.RawCenter, 0, len(r.ClusterCenters)),
		Features:     r.FeaturesUsed,
		Inertia:      r.Inertia,
		ClusterCount: requested,
	}
	for i, t := range tracks {
		if !t.Clustered {
			return dataset.Input{}, fmt.Errorf("track %d (%s) has no cluster: %w", i, t.ID, ErrMalformed)
		}
		in.Items = append(in.Items, dataset.RawItem{
			ID:       t.ID,
			Name:     t.Name,
			Artist:   t.Artist,
			Cover:    t.AlbumCover,
			Cluster:  t.Cluster,
			Features: t.Features,
		})
	}
	for _, c := range r.ClusterCenters {
		in.Centers = append(in.Centers, dataset.RawCenter{Cluster: c.Cluster, Features: c.Features})
	}
	return in, nil
}

// RecommendRequest is the body of POST /recommendations. Token is passed
// through exactly as supplied.
type RecommendRequest struct {
	SeedTracks []string `json:"seed_tracks"`
	Token      string   `json:"token"`
	Limit      int      `json:"limit"`
}

type recommendResponse struct {
	Recommendations []Recommendation `json:"recommendations"`
}

type tracksResponse struct {
	Tracks []Track `json:"tracks"`
}

// Recommendation is one recommended track.
type Recommendation struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"album"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

// Artist returns the first artist name, or "".
func (r Recommendation) Artist() string {
	if len(r.Artists) == 0 {
		return ""
	}
	return r.Artists[0].Name
}

// Cover returns the first album image URL, or "".
func (r Recommendation) Cover() string {
	if len(r.Album.Images) == 0 {
		return ""
	}
	return r.Album.Images[0].URL
}

// URL returns the external player link, or "".
func (r Recommendation) URL() string { return r.ExternalURLs.Spotify }
