package service

import (
	"context"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"ocppcs/internal/models"
	"ocppcs/internal/ocpp/protocol"
)

// DefaultExpiryGrace is the expiry window returned when no usable tag record
// exists. A short grace lets a misconfigured or offline store fail safe instead
// of blocking all charging.
const DefaultExpiryGrace = 5 * time.Minute

// TagStore is the narrow persistence surface the authorizer reads.
type TagStore interface {
	Find(ctx context.Context, tagID string) (*models.ChargeTag, error)
}

// OpenTransactionFinder locates open transactions for the concurrency check.
type OpenTransactionFinder interface {
	FindOpenByTag(ctx context.Context, tagID string) (*models.Transaction, error)
}

// TagAuthorization is the resolved outcome for a presented identifier.
type TagAuthorization struct {
	Status      string
	ParentIdTag string
	ExpiryDate  time.Time
}

// IdTagInfo converts the outcome into the wire representation.
func (a TagAuthorization) IdTagInfo() protocol.IdTagInfo {
	expiry := a.ExpiryDate
	return protocol.IdTagInfo{
		Status:      a.Status,
		ParentIdTag: a.ParentIdTag,
		ExpiryDate:  &expiry,
	}
}

// NormalizeTagID is the single canonical tag normalization: trim, drop
// non-printable and whitespace characters, uppercase. Applied at every lookup
// site so devices reporting the same card in different casings resolve to one
// record.
func NormalizeTagID(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if r > unicode.MaxASCII || !unicode.IsPrint(r) || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// TagAuthorizer resolves tag identifiers to authorization outcomes.
type TagAuthorizer struct {
	tags             TagStore
	transactions     OpenTransactionFinder
	denyConcurrentTx bool
	logger           *zap.Logger
	now              func() time.Time
}

// NewTagAuthorizer builds the resolver. denyConcurrentTx enables the
// per-tag single-open-transaction policy used by StartTransaction.
func NewTagAuthorizer(tags TagStore, transactions OpenTransactionFinder, denyConcurrentTx bool, logger *zap.Logger) *TagAuthorizer {
	return &TagAuthorizer{
		tags:             tags,
		transactions:     transactions,
		denyConcurrentTx: denyConcurrentTx,
		logger:           logger,
		now:              time.Now,
	}
}

// Resolve decides the authorization status for a raw identifier. It never
// returns an error: store failures degrade to Invalid so the device always
// receives a well-formed answer.
func (a *TagAuthorizer) Resolve(ctx context.Context, rawTagID string) TagAuthorization {
	return a.resolve(ctx, rawTagID, false)
}

// ResolveForStart additionally applies the concurrent-transaction policy when
// it is enabled. The check-then-act against the store is best effort under
// extreme races; the persistence layer's row atomicity bounds the damage to a
// second open transaction, not corrupted rows.
func (a *TagAuthorizer) ResolveForStart(ctx context.Context, rawTagID string) TagAuthorization {
	return a.resolve(ctx, rawTagID, a.denyConcurrentTx)
}

func (a *TagAuthorizer) resolve(ctx context.Context, rawTagID string, checkConcurrent bool) TagAuthorization {
	tagID := NormalizeTagID(rawTagID)

	result := TagAuthorization{
		Status:     protocol.TagInvalid,
		ExpiryDate: a.now().UTC().Add(DefaultExpiryGrace),
	}

	tag, err := a.tags.Find(ctx, tagID)
	if err != nil {
		a.logger.Error("charge tag lookup failed",
			zap.String("tag_id", tagID),
			zap.Error(err))
		return result
	}
	if tag == nil {
		return result
	}

	if tag.ExpiryDate != nil {
		result.ExpiryDate = *tag.ExpiryDate
	}
	result.ParentIdTag = tag.ParentTagID

	switch {
	case tag.Blocked:
		result.Status = protocol.TagBlocked
	case tag.ExpiryDate != nil && tag.ExpiryDate.Before(a.now()):
		result.Status = protocol.TagExpired
	default:
		result.Status = protocol.TagAccepted
	}

	if checkConcurrent && result.Status == protocol.TagAccepted {
		open, err := a.transactions.FindOpenByTag(ctx, tagID)
		if err != nil {
			a.logger.Error("open transaction lookup failed",
				zap.String("tag_id", tagID),
				zap.Error(err))
		} else if open != nil {
			result.Status = protocol.TagConcurrentTx
		}
	}

	return result
}
