package model

import (
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

const ChangeTypeUpsert = "UPSERT"

type AuditHeader struct {
	// Time is milliseconds since epoch
	Time         int64   `json:"time"`
	Actor        string  `json:"actor"`
	Impersonator *string `json:"impersonator"`
}

type AspectPayload struct {
	// Value is JSON encoded aspect
	Value       string `json:"value"`
	ContentType string `json:"contentType"`
}

// Envelope is one aspect upsert of an entity sent to the catalog service.
type Envelope struct {
	AuditHeader *AuditHeader  `json:"auditHeader,omitempty"`
	EntityType  string        `json:"entityType"`
	EntityURN   types.URN     `json:"entityUrn"`
	ChangeType  string        `json:"changeType"`
	AspectName  string        `json:"aspectName"`
	Aspect      AspectPayload `json:"aspect"`
}

// IngestRequest is the request body of batch ingestion.
type IngestRequest struct {
	Elements []*Envelope `json:"elements"`
}
