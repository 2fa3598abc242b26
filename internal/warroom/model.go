package warroom

import (
	"fmt"
	"strings"

	"warroom/internal/geo"
)

// SentinelID marks the fleet's own home entity. Anything carrying it as its
// id or ancestor id is always shown by filtered node lists and is the
// fallback endpoint for transit routes.
const SentinelID = "fleetzero"

// Level is the hierarchy level a node, selection or view mode refers to.
type Level string

const (
	LevelParent     Level = "parent"
	LevelSubsidiary Level = "subsidiary"
	LevelFactory    Level = "factory"
)

func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelParent:
		return LevelParent, nil
	case LevelSubsidiary:
		return LevelSubsidiary, nil
	case LevelFactory:
		return LevelFactory, nil
	default:
		return "", fmt.Errorf("%w: unknown level %q", ErrInvalidInput, s)
	}
}

type Metrics struct {
	AssetCount    int     `json:"assetCount"`
	IncidentCount int     `json:"incidentCount"`
	SyncStability float64 `json:"syncStability"`
}

type Hub struct {
	Code   string `json:"code"`
	Status Status `json:"status"`
}

type FactoryLocation struct {
	ID            string     `json:"id"`
	ParentGroupID string     `json:"parentGroupId"`
	SubsidiaryID  string     `json:"subsidiaryId"`
	Name          string     `json:"name"`
	City          string     `json:"city"`
	Country       string     `json:"country"`
	Coordinates   geo.LatLng `json:"coordinates"`
	Assets        int        `json:"assets"`
	Incidents     int        `json:"incidents"`
	SyncStability float64    `json:"syncStability"`
	Status        Status     `json:"status"`
	Description   string     `json:"description,omitempty"`
	Logo          string     `json:"logo,omitempty"`
}

type SubsidiaryCompany struct {
	ID            string            `json:"id"`
	ParentGroupID string            `json:"parentGroupId"`
	Name          string            `json:"name"`
	Location      string            `json:"location"`
	Description   string            `json:"description,omitempty"`
	Status        Status            `json:"status"`
	Logo          string            `json:"logo,omitempty"`
	Hubs          []Hub             `json:"hubs"`
	Factories     []FactoryLocation `json:"factories"`
	Metrics       Metrics           `json:"metrics"`
}

type ParentGroup struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Status       Status              `json:"status"`
	Logo         string              `json:"logo,omitempty"`
	Description  string              `json:"description,omitempty"`
	Subsidiaries []SubsidiaryCompany `json:"subsidiaries"`
	Metrics      Metrics             `json:"metrics"`
}

// Node is the map projection of one entity at the active level. It is
// derived from the hierarchy and never stored on its own.
type Node struct {
	ID            string     `json:"id"`
	Level         Level      `json:"level"`
	Name          string     `json:"name"`
	Company       string     `json:"company"`
	City          string     `json:"city,omitempty"`
	Country       string     `json:"country,omitempty"`
	Coordinates   geo.LatLng `json:"coordinates"`
	Status        Status     `json:"status"`
	Logo          string     `json:"logo,omitempty"`
	Assets        int        `json:"assets"`
	Incidents     int        `json:"incidents"`
	SyncStability float64    `json:"syncStability"`
	ParentGroupID string     `json:"parentGroupId"`
	SubsidiaryID  string     `json:"subsidiaryId,omitempty"`
	FactoryID     string     `json:"factoryId,omitempty"`
}

// Selection is what is currently selected or hovered. Level is the tag; ID
// names the entity at that level and the ancestor ids are re-derived from the
// hierarchy whenever the selection is stored.
type Selection struct {
	Level         Level  `json:"level"`
	ID            string `json:"id"`
	ParentGroupID string `json:"parentGroupId,omitempty"`
	SubsidiaryID  string `json:"subsidiaryId,omitempty"`
}

func (s *Selection) Equal(o *Selection) bool {
	if s == nil || o == nil {
		return s == o
	}
	return *s == *o
}

// Matches reports whether the selection points at the given node.
func (s *Selection) Matches(n Node) bool {
	return s != nil && s.Level == n.Level && s.ID == n.ID
}

type TransitRoute struct {
	ID     string `json:"id"`
	From   string `json:"from"`
	To     string `json:"to"`
	Status Status `json:"status,omitempty"`
	Label  string `json:"label,omitempty"`
}

type ActivityLog struct {
	ID            string    `json:"id"`
	FactoryID     string    `json:"factoryId,omitempty"`
	SubsidiaryID  string    `json:"subsidiaryId,omitempty"`
	ParentGroupID string    `json:"parentGroupId,omitempty"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Severity      string    `json:"severity,omitempty"`
	Status        Status    `json:"status,omitempty"`
	Timestamp     Timestamp `json:"timestamp"`
}

type NetworkMetrics struct {
	DataFlowIntegrity  float64 `json:"dataFlowIntegrity"`
	FleetSyncRate      float64 `json:"fleetSyncRate"`
	NetworkLatency     float64 `json:"networkLatency"`
	NodeDensity        float64 `json:"nodeDensity"`
	EncryptionProtocol string  `json:"encryptionProtocol"`
	EncryptionStatus   string  `json:"encryptionStatus"`
}

type NetworkMetricsPatch struct {
	DataFlowIntegrity  *float64 `json:"dataFlowIntegrity,omitempty"`
	FleetSyncRate      *float64 `json:"fleetSyncRate,omitempty"`
	NetworkLatency     *float64 `json:"networkLatency,omitempty"`
	NodeDensity        *float64 `json:"nodeDensity,omitempty"`
	EncryptionProtocol *string  `json:"encryptionProtocol,omitempty"`
	EncryptionStatus   *string  `json:"encryptionStatus,omitempty"`
}

type NetworkThroughput struct {
	Labels   []string  `json:"labels"`
	Values   []float64 `json:"values"`
	MaxValue float64   `json:"maxValue"`
	Unit     string    `json:"unit"`
}

type NetworkThroughputPatch struct {
	Labels   *[]string  `json:"labels,omitempty"`
	Values   *[]float64 `json:"values,omitempty"`
	MaxValue *float64   `json:"maxValue,omitempty"`
	Unit     *string    `json:"unit,omitempty"`
}

type GeopoliticalHeatmap struct {
	Grid [][]float64 `json:"grid"`
	Rows int         `json:"rows"`
	Cols int         `json:"cols"`
}

type SatelliteStatus struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Signal      float64   `json:"signal"`
	LastContact Timestamp `json:"lastContact"`
}

type SatelliteStatusPatch struct {
	Status      *Status    `json:"status,omitempty"`
	Signal      *float64   `json:"signal,omitempty"`
	LastContact *Timestamp `json:"lastContact,omitempty"`
}

type ParentGroupInput struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Status      Status `json:"status,omitempty"`
	Logo        string `json:"logo,omitempty"`
	Description string `json:"description,omitempty"`
}

type SubsidiaryInput struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
	Status      Status `json:"status,omitempty"`
	Logo        string `json:"logo,omitempty"`
	Hubs        []Hub  `json:"hubs,omitempty"`
}

type SubsidiaryPatch struct {
	Name        *string `json:"name,omitempty"`
	Location    *string `json:"location,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *Status `json:"status,omitempty"`
	Logo        *string `json:"logo,omitempty"`
	Hubs        *[]Hub  `json:"hubs,omitempty"`
}

type FactoryInput struct {
	ID            string     `json:"id,omitempty"`
	Name          string     `json:"name"`
	City          string     `json:"city,omitempty"`
	Country       string     `json:"country,omitempty"`
	Coordinates   geo.LatLng `json:"coordinates"`
	Assets        int        `json:"assets"`
	Incidents     int        `json:"incidents"`
	SyncStability float64    `json:"syncStability"`
	Status        Status     `json:"status,omitempty"`
	Description   string     `json:"description,omitempty"`
	Logo          string     `json:"logo,omitempty"`
}

type FactoryPatch struct {
	Name          *string     `json:"name,omitempty"`
	City          *string     `json:"city,omitempty"`
	Country       *string     `json:"country,omitempty"`
	Coordinates   *geo.LatLng `json:"coordinates,omitempty"`
	Assets        *int        `json:"assets,omitempty"`
	Incidents     *int        `json:"incidents,omitempty"`
	SyncStability *float64    `json:"syncStability,omitempty"`
	Status        *Status     `json:"status,omitempty"`
	Description   *string     `json:"description,omitempty"`
	Logo          *string     `json:"logo,omitempty"`
}
