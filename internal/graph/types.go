// Package graph implements entity graph storage for fraud detection.
// Callers build graphs of typed entities (accounts, devices, merchants...)
// whose nodes carry externally computed risk scores; the analysis layer
// consumes them read-only.
package graph

import (
	"errors"
	"time"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	ErrGraphNotFound = errors.New("graph: graph not found")
	ErrGraphExists   = errors.New("graph: graph already exists")
	ErrNodeNotFound  = errors.New("graph: node not found")
	ErrNodeExists    = errors.New("graph: node already exists")
	ErrEdgeNotFound  = errors.New("graph: edge not found")
	ErrEdgeExists    = errors.New("graph: edge already exists")
	ErrNodeLimit     = errors.New("graph: node limit reached")
	ErrEdgeLimit     = errors.New("graph: edge limit reached")
	ErrInvalidCursor = errors.New("graph: invalid cursor")
)

// -----------------------------------------------------------------------------
// Enumerations
// -----------------------------------------------------------------------------

// NodeType categorizes the entity a node represents.
type NodeType string

const (
	NodeTypeUser        NodeType = "user"
	NodeTypeAccount     NodeType = "account"
	NodeTypeTransaction NodeType = "transaction"
	NodeTypeDevice      NodeType = "device"
	NodeTypeIP          NodeType = "ip"
	NodeTypeMerchant    NodeType = "merchant"
	NodeTypeLocation    NodeType = "location"
	NodeTypeCard        NodeType = "card"
	NodeTypeBank        NodeType = "bank"
	NodeTypePhone       NodeType = "phone"
	NodeTypeEmail       NodeType = "email"
	NodeTypeAddress     NodeType = "address"
	NodeTypeCompany     NodeType = "company"
	NodeTypeDocument    NodeType = "document"
	NodeTypeOther       NodeType = "other"
)

// KnownNodeTypes is the entity taxonomy
var KnownNodeTypes = []NodeType{
	NodeTypeUser,
	NodeTypeAccount,
	NodeTypeTransaction,
	NodeTypeDevice,
	NodeTypeIP,
	NodeTypeMerchant,
	NodeTypeLocation,
	NodeTypeCard,
	NodeTypeBank,
	NodeTypePhone,
	NodeTypeEmail,
	NodeTypeAddress,
	NodeTypeCompany,
	NodeTypeDocument,
	NodeTypeOther,
}

// IsKnownNodeType checks if a node type is in our taxonomy
func IsKnownNodeType(t NodeType) bool {
	for _, known := range KnownNodeTypes {
		if known == t {
			return true
		}
	}
	return false
}

// EdgeType categorizes the relationship an edge represents.
type EdgeType string

const (
	EdgeTypeTransfer       EdgeType = "transfer"
	EdgeTypeLogin          EdgeType = "login"
	EdgeTypeUses           EdgeType = "uses"
	EdgeTypeOwns           EdgeType = "owns"
	EdgeTypeShares         EdgeType = "shares"
	EdgeTypeTransactsWith  EdgeType = "transacts-with"
	EdgeTypeLocatedAt      EdgeType = "located-at"
	EdgeTypeAssociatedWith EdgeType = "associated-with"
	EdgeTypeConnectedTo    EdgeType = "connected-to"
	EdgeTypeBelongsTo      EdgeType = "belongs-to"
	EdgeTypeCalls          EdgeType = "calls"
	EdgeTypeEmails         EdgeType = "emails"
	EdgeTypeVisits         EdgeType = "visits"
	EdgeTypeOther          EdgeType = "other"
)

// KnownEdgeTypes is the relationship taxonomy
var KnownEdgeTypes = []EdgeType{
	EdgeTypeTransfer,
	EdgeTypeLogin,
	EdgeTypeUses,
	EdgeTypeOwns,
	EdgeTypeShares,
	EdgeTypeTransactsWith,
	EdgeTypeLocatedAt,
	EdgeTypeAssociatedWith,
	EdgeTypeConnectedTo,
	EdgeTypeBelongsTo,
	EdgeTypeCalls,
	EdgeTypeEmails,
	EdgeTypeVisits,
	EdgeTypeOther,
}

// IsKnownEdgeType checks if an edge type is in our taxonomy
func IsKnownEdgeType(t EdgeType) bool {
	for _, known := range KnownEdgeTypes {
		if known == t {
			return true
		}
	}
	return false
}

// Status represents the lifecycle state of a graph.
type Status string

const (
	StatusActive     Status = "active"
	StatusInactive   Status = "inactive"
	StatusProcessing Status = "processing"
	StatusError      Status = "error"
)

// IsValidStatus checks if a status value is recognized.
func IsValidStatus(s Status) bool {
	switch s {
	case StatusActive, StatusInactive, StatusProcessing, StatusError:
		return true
	}
	return false
}

// RiskLevel is the categorical risk stamped on graph metadata after analysis.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// -----------------------------------------------------------------------------
// Core Types
// -----------------------------------------------------------------------------

// Node is an entity in a fraud detection graph. Identity is immutable once
// added; risk score and properties are mutable via update.
type Node struct {
	ID             string                 `json:"id"`
	Type           NodeType               `json:"type"`
	RiskScore      float64                `json:"riskScore"`            // In [0,1], externally computed
	Properties     map[string]interface{} `json:"properties,omitempty"` // Free-form property bag
	CreatedAt      time.Time              `json:"createdAt"`
	LastActivityAt time.Time              `json:"lastActivityAt"`
}

// Edge is a directed relationship between two nodes. Endpoints are weak
// references: they are not validated at insert time, so an edge may point at
// nodes that were never added or have since been deleted. Consumers skip
// edges with missing endpoints.
type Edge struct {
	ID           string                 `json:"id"`
	SourceNodeID string                 `json:"sourceNodeId"`
	TargetNodeID string                 `json:"targetNodeId"`
	Type         EdgeType               `json:"type"`
	Weight       float64                `json:"weight"` // Defaults to 1
	Properties   map[string]interface{} `json:"properties,omitempty"`
	CreatedAt    time.Time              `json:"createdAt"`
}

// Metadata carries analysis bookkeeping for a graph.
type Metadata struct {
	Domain         string     `json:"domain"`
	RiskLevel      RiskLevel  `json:"riskLevel"`
	LastAnalysisAt *time.Time `json:"lastAnalysisAt,omitempty"`
}

// Graph is a named collection of nodes and edges. Created empty, populated
// incrementally, analyzed on demand.
type Graph struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Status        Status    `json:"status"`
	Nodes         []*Node   `json:"nodes,omitempty"`
	Edges         []*Edge   `json:"edges,omitempty"`
	NodeCount     int       `json:"nodeCount"`
	EdgeCount     int       `json:"edgeCount"`
	Metadata      Metadata  `json:"metadata"`
	CreatedAt     time.Time `json:"createdAt"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

// -----------------------------------------------------------------------------
// Request Types
// -----------------------------------------------------------------------------

// CreateGraphRequest is the payload for creating a graph
type CreateGraphRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// UpdateGraphRequest is the payload for updating graph attributes.
// Nil fields are left unchanged.
type UpdateGraphRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *Status `json:"status,omitempty"`
}

// AddNodeRequest is the payload for adding a node. A nil RiskScore means
// "unscored": the upstream scorer fills it when configured, else 0.
type AddNodeRequest struct {
	ID         string                 `json:"id"` // Optional, generated when empty
	Type       NodeType               `json:"type" binding:"required"`
	RiskScore  *float64               `json:"riskScore,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// UpdateNodeRequest is the payload for updating a node.
// Nil fields are left unchanged.
type UpdateNodeRequest struct {
	Type       *NodeType              `json:"type,omitempty"`
	RiskScore  *float64               `json:"riskScore,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// AddEdgeRequest is the payload for adding an edge. Weight defaults to 1
// when omitted.
type AddEdgeRequest struct {
	ID           string                 `json:"id"` // Optional, generated when empty
	SourceNodeID string                 `json:"sourceNodeId" binding:"required"`
	TargetNodeID string                 `json:"targetNodeId" binding:"required"`
	Type         EdgeType               `json:"type" binding:"required"`
	Weight       *float64               `json:"weight,omitempty"`
	Properties   map[string]interface{} `json:"properties,omitempty"`
}

// -----------------------------------------------------------------------------
// Query Types
// -----------------------------------------------------------------------------

// ListQuery filters for listing graphs
type ListQuery struct {
	Status Status // Filter by status, empty matches all
	Limit  int    // Max results (default 100)
	After  *Pos   // Return graphs strictly older than this position
}

// Pos is a position in the newest-first graph ordering.
type Pos struct {
	CreatedAt time.Time
	ID        string
}
