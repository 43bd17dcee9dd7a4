package memory

import (
	"context"

	"gorm.io/gorm"
)

// 领域级文档的归属标记
const DomainCreatedBy = "default"

// DocumentService 文档引用管理
type DocumentService struct {
	db *gorm.DB
}

// NewDocumentService 创建文档服务
func NewDocumentService(db *gorm.DB) *DocumentService {
	return &DocumentService{db: db}
}

// DocumentFilter 文档查询条件，按 客户 > 专家 > 领域 的优先级取最具体的一层
type DocumentFilter struct {
	Domain string
	Expert string
	Client string
}

// ListDocuments 按条件列出文档引用
// 指定客户时查该客户的私有文档（专家、领域条件可选），指定专家时查专家级文档
// （不含客户私有），指定领域时查领域公共文档，条件全空返回空列表
func (s *DocumentService) ListDocuments(ctx context.Context, filter DocumentFilter) ([]Document, error) {
	query := s.db.WithContext(ctx).Model(&Document{})
	switch {
	case filter.Client != "":
		query = query.Where("client_name = ?", filter.Client)
		if filter.Expert != "" {
			query = query.Where("created_by = ?", filter.Expert)
		}
		if filter.Domain != "" {
			query = query.Where("domain = ?", filter.Domain)
		}
	case filter.Expert != "":
		query = query.Where("created_by = ? AND client_name = ''", filter.Expert)
		if filter.Domain != "" {
			query = query.Where("domain = ?", filter.Domain)
		}
	case filter.Domain != "":
		query = query.Where("domain = ? AND created_by = ?", filter.Domain, DomainCreatedBy)
	default:
		return []Document{}, nil
	}

	var documents []Document
	if err := query.Order("created_at ASC").Find(&documents).Error; err != nil {
		return nil, err
	}
	return documents, nil
}

// ListByOwner 列出归属元组名下的文档引用
func (s *DocumentService) ListByOwner(ctx context.Context, tuple OwnerTuple) ([]Document, error) {
	createdBy := tuple.Expert
	if createdBy == "" {
		createdBy = DomainCreatedBy
	}
	var documents []Document
	err := s.db.WithContext(ctx).
		Where("domain = ? AND created_by = ? AND client_name = ?",
			tuple.Domain, createdBy, tuple.Client).
		Order("created_at ASC").
		Find(&documents).Error
	if err != nil {
		return nil, err
	}
	return documents, nil
}

// Create 登记一条文档引用
func (s *DocumentService) Create(ctx context.Context, doc *Document) error {
	return s.db.WithContext(ctx).Create(doc).Error
}

// DeleteByFileID 按引擎文件 ID 删除文档引用
func (s *DocumentService) DeleteByFileID(ctx context.Context, fileID string) error {
	return s.db.WithContext(ctx).Where("openai_file_id = ?", fileID).Delete(&Document{}).Error
}
