package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// Conversation rows are written once per completed turn. The embedding column
// dimension is fixed by cmd/migrate from EMBEDDING_DIMENSION.
type Conversation struct {
	Id                uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DomainTag         string           `gorm:"type:varchar(64);not null;index"`
	SessionId         string           `gorm:"type:varchar(128);not null;index"`
	UserMessage       string           `gorm:"type:text;not null"`
	AssistantResponse string           `gorm:"type:text;not null"`
	Embedding         *pgvector.Vector `gorm:"type:vector"`
	Stage             string           `gorm:"type:varchar(32)"`
	Outcome           string           `gorm:"type:varchar(32);default:'in_progress'"`
	Problem           string           `gorm:"type:varchar(128)"`
	Solution          string           `gorm:"type:varchar(128)"`
	ConversionScore   *float64
	BookingCompleted  bool `gorm:"default:false"`
	ResponseTimeMs    int64
	Metadata          datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt         time.Time      `gorm:"autoCreateTime;index"`
	UpdatedAt         time.Time      `gorm:"autoUpdateTime"`
}

func (Conversation) TableName() string {
	return "conversations"
}

type ConversationExample struct {
	Id              uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DomainTag       string           `gorm:"type:varchar(64);not null;index"`
	Utterance       string           `gorm:"type:text;not null"`
	Response        string           `gorm:"type:text;not null"`
	Embedding       *pgvector.Vector `gorm:"type:vector"`
	Problem         string           `gorm:"type:varchar(128)"`
	Solution        string           `gorm:"type:varchar(128)"`
	Outcome         string           `gorm:"type:varchar(32)"`
	Stage           string           `gorm:"type:varchar(32)"`
	ConversionScore *float64
	CreatedAt       time.Time `gorm:"autoCreateTime"`
}

func (ConversationExample) TableName() string {
	return "conversation_examples"
}
