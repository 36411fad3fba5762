package specification

import "gorm.io/gorm"

type ByDomainTag struct {
	DomainTag string
}

func (s ByDomainTag) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("domain_tag = ?", s.DomainTag)
}

type BySessionID struct {
	SessionID string
}

func (s BySessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("session_id = ?", s.SessionID)
}

// ByOutcome filters conversations by their recorded outcome.
type ByOutcome struct {
	Outcome string
}

func (s ByOutcome) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("outcome = ?", s.Outcome)
}

type WithEmbedding struct{}

func (s WithEmbedding) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("embedding IS NOT NULL")
}
