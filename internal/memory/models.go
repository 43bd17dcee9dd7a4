package memory

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 向量库归属类型
const (
	OwnerDomain = "domain"
	OwnerExpert = "expert"
	OwnerClient = "client"
)

// Domain 领域：按名称唯一注册，创建时同步建立默认向量库
type Domain struct {
	ID              string                      `gorm:"type:uuid;primaryKey" json:"id"`
	DomainName      string                      `gorm:"type:varchar(200);not null;uniqueIndex" json:"domain_name"`
	DefaultVectorID string                      `gorm:"type:varchar(100)" json:"default_vector_id,omitempty"`
	ExpertNames     datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"expert_names"` // 成员专家名缓存，仅作参考，权威数据在 experts 表
	CreatedAt       time.Time                   `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time                   `gorm:"not null" json:"updated_at"`
}

// BeforeCreate GORM 钩子：创建前设置 ID
func (d *Domain) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (Domain) TableName() string {
	return "domains"
}

// Expert 专家：必须归属某个领域，可携带自由文本上下文
type Expert struct {
	ID                string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name              string    `gorm:"type:varchar(200);not null;uniqueIndex" json:"name"`
	Domain            string    `gorm:"type:varchar(200);not null;index" json:"domain"`
	Context           string    `gorm:"type:text" json:"context"`
	DefaultVectorID   string    `gorm:"type:varchar(100)" json:"default_vector_id,omitempty"`   // 创建时从领域默认库复制
	PreferredVectorID string    `gorm:"type:varchar(100)" json:"preferred_vector_id,omitempty"` // 专属库建立后指向专属库
	CreatedAt         time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time `gorm:"not null" json:"updated_at"`
}

// BeforeCreate GORM 钩子：创建前设置 ID
func (e *Expert) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (Expert) TableName() string {
	return "experts"
}

// StoreRecord 向量库登记记录
// 归属元组 (domain, expert, client) 全库唯一，expert/client 为空串表示该层级缺省；
// 复合唯一索引在数据库层兜底并发下的重复创建
type StoreRecord struct {
	ID            string                      `gorm:"type:uuid;primaryKey" json:"id"`
	VectorID      string                      `gorm:"type:varchar(100);not null;uniqueIndex" json:"vector_id"`
	Owner         string                      `gorm:"type:varchar(20);not null" json:"owner"` // domain | expert | client
	DomainName    string                      `gorm:"type:varchar(200);not null;uniqueIndex:idx_store_owner_tuple" json:"domain_name"`
	ExpertName    string                      `gorm:"type:varchar(200);not null;default:'';uniqueIndex:idx_store_owner_tuple" json:"expert_name,omitempty"`
	ClientName    string                      `gorm:"type:varchar(200);not null;default:'';uniqueIndex:idx_store_owner_tuple" json:"client_name,omitempty"`
	FileIDs       datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"file_ids"`
	BatchIDs      datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"batch_ids"`
	LatestBatchID string                      `gorm:"type:varchar(100)" json:"latest_batch_id,omitempty"`
	CreatedAt     time.Time                   `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time                   `gorm:"not null" json:"updated_at"`
}

// BeforeCreate GORM 钩子：创建前设置 ID
func (s *StoreRecord) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (StoreRecord) TableName() string {
	return "vector_stores"
}

// Tuple 返回记录的归属元组
func (s *StoreRecord) Tuple() OwnerTuple {
	return OwnerTuple{
		Domain: s.DomainName,
		Expert: s.ExpertName,
		Client: s.ClientName,
	}
}

// Document 文档引用：摄取时登记，编辑剔除时删除
type Document struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(500);not null" json:"name"`
	DocumentLink string    `gorm:"type:varchar(1000);not null" json:"document_link"`
	Domain       string    `gorm:"type:varchar(200);not null;index" json:"domain"`
	CreatedBy    string    `gorm:"type:varchar(200);not null;default:'default'" json:"created_by"` // 专家名，领域级文档为 default
	ClientName   string    `gorm:"type:varchar(200);not null;default:''" json:"client_name,omitempty"`
	OpenAIFileID string    `gorm:"column:openai_file_id;type:varchar(100);not null;index" json:"openai_file_id"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

// BeforeCreate GORM 钩子：创建前设置 ID
func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return nil
}

// TableName 指定表名
func (Document) TableName() string {
	return "documents"
}

// AllModels 返回需要迁移的全部模型
func AllModels() []any {
	return []any{&Domain{}, &Expert{}, &StoreRecord{}, &Document{}}
}
