package usecase

import (
	"time"

	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/urn"
)

var CreateOrUpdateTable = createOrUpdateTable

// BuildEnvelopes exposes envelope conversion for tests.
func BuildEnvelopes(builder *urn.Builder, actor string, now time.Time, entity model.Entity) ([]*model.Envelope, error) {
	b := &envelopeBuilder{
		urn:   builder,
		actor: actor,
		now:   func() time.Time { return now },
	}
	return b.Build(entity)
}

var Sleep = sleep
