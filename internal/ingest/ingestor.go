package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"expertmemory/internal/common"
	"expertmemory/internal/engine"
	"expertmemory/internal/logger"
	"expertmemory/internal/memory"
	"expertmemory/internal/metrics"
)

// DocumentInput 一条待摄取的文档：展示名 + 下载链接
type DocumentInput struct {
	Name string
	Link string
}

// Result 一次摄取操作的结果
type Result struct {
	VectorID      string   `json:"vector_id"`
	BatchID       string   `json:"batch_id,omitempty"`
	BatchStatus   string   `json:"batch_status,omitempty"`
	IngestedFiles []string `json:"ingested_files"`
	RemovedFiles  []string `json:"removed_files,omitempty"`
	KeptFiles     []string `json:"kept_files,omitempty"`
	NoChanges     bool     `json:"no_changes,omitempty"`
	Warnings      []string `json:"-"`
}

// Ingestor 文档摄取器：负责 上传-挂载-登记 的完整链路
type Ingestor struct {
	registry  *memory.StoreRegistry
	documents *memory.DocumentService
	fetcher   *Fetcher
	engine    engine.Engine
}

// NewIngestor 创建摄取器
func NewIngestor(registry *memory.StoreRegistry, documents *memory.DocumentService,
	fetcher *Fetcher, eng engine.Engine) *Ingestor {
	return &Ingestor{registry: registry, documents: documents, fetcher: fetcher, engine: eng}
}

// uploaded 已上传到引擎但尚未登记的文件
type uploaded struct {
	fileID string
	doc    DocumentInput
}

// ingestDocuments 逐个拉取并上传文档
// strict 为真时任一失败即中止并回收已上传的文件，否则跳过失败文档并以警告返回
func (i *Ingestor) ingestDocuments(ctx context.Context, owner string, docs []DocumentInput, strict bool) ([]uploaded, []string, error) {
	var files []uploaded
	var warnings []string
	for _, doc := range docs {
		filename, data, err := i.fetcher.Fetch(ctx, doc.Name, doc.Link)
		if err == nil {
			var fileID string
			fileID, err = i.engine.RegisterContent(ctx, filename, data)
			if err == nil {
				files = append(files, uploaded{fileID: fileID, doc: doc})
				continue
			}
		}
		metrics.DocumentsIngestedTotal.WithLabelValues(owner, "failed").Inc()
		if strict {
			i.cleanupUploads(ctx, files)
			return nil, nil, err
		}
		logger.Warn("文档摄取失败，跳过",
			zap.String("name", doc.Name), zap.Error(err))
		warnings = append(warnings, "文档 "+doc.Name+" 摄取失败："+err.Error())
	}
	return files, warnings, nil
}

// cleanupUploads 摄取中断时回收已上传的文件，失败仅记录日志
func (i *Ingestor) cleanupUploads(ctx context.Context, files []uploaded) {
	for _, f := range files {
		if err := i.engine.DeleteContent(ctx, f.fileID); err != nil {
			logger.Warn("摄取中断后的文件回收失败",
				zap.String("file_id", f.fileID), zap.Error(err))
		}
	}
}

// registerDocuments 为已挂载的文件落库文档引用
func (i *Ingestor) registerDocuments(ctx context.Context, tuple memory.OwnerTuple, files []uploaded) []string {
	createdBy := tuple.Expert
	if createdBy == "" {
		createdBy = memory.DomainCreatedBy
	}
	var warnings []string
	for _, f := range files {
		doc := &memory.Document{
			Name:         f.doc.Name,
			DocumentLink: f.doc.Link,
			Domain:       tuple.Domain,
			CreatedBy:    createdBy,
			ClientName:   tuple.Client,
			OpenAIFileID: f.fileID,
		}
		if err := i.documents.Create(ctx, doc); err != nil {
			logger.Warn("文档引用落库失败",
				zap.String("name", f.doc.Name), zap.Error(err))
			warnings = append(warnings, "文档 "+f.doc.Name+" 已入库，但引用记录保存失败："+err.Error())
		}
	}
	return warnings
}

// Add 首次向量库摄取：上传文档、挂载批次并建立登记记录
// 仅适用于尚未登记的向量库，已登记时应走 Edit
func (i *Ingestor) Add(ctx context.Context, tuple memory.OwnerTuple, vectorID string, docs []DocumentInput) (*Result, error) {
	if len(docs) == 0 {
		return nil, common.NewBusinessError(common.CodeInvalidRequest, "文档列表不能为空")
	}
	existing, err := i.registry.Find(ctx, tuple)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, common.NewBusinessErrorf(common.CodeDuplicateStore,
			"归属 (%s, %s, %s) 的向量库已登记，请使用更新接口", tuple.Domain, tuple.Expert, tuple.Client)
	}

	owner := tuple.Owner()
	files, _, err := i.ingestDocuments(ctx, owner, docs, true)
	if err != nil {
		return nil, err
	}
	fileIDs := make([]string, 0, len(files))
	for _, f := range files {
		fileIDs = append(fileIDs, f.fileID)
	}

	batch, err := i.engine.BatchIngest(ctx, vectorID, fileIDs)
	if err != nil {
		i.cleanupUploads(ctx, files)
		metrics.DocumentsIngestedTotal.WithLabelValues(owner, "failed").Inc()
		return nil, err
	}

	record := &memory.StoreRecord{
		VectorID:      vectorID,
		Owner:         owner,
		DomainName:    tuple.Domain,
		ExpertName:    tuple.Expert,
		ClientName:    tuple.Client,
		FileIDs:       datatypes.JSONSlice[string](fileIDs),
		BatchIDs:      datatypes.JSONSlice[string]{batch.ID},
		LatestBatchID: batch.ID,
	}
	if err := i.registry.Insert(ctx, record); err != nil {
		return nil, err
	}
	warnings := i.registerDocuments(ctx, tuple, files)
	metrics.DocumentsIngestedTotal.WithLabelValues(owner, "success").Add(float64(len(files)))
	logger.Info("首次摄取完成",
		zap.String("vector_id", vectorID),
		zap.String("batch_id", batch.ID),
		zap.Int("files", len(files)))
	return &Result{
		VectorID:      vectorID,
		BatchID:       batch.ID,
		BatchStatus:   batch.Status,
		IngestedFiles: fileIDs,
		Warnings:      warnings,
	}, nil
}

// Edit 覆盖式更新向量库内容
// 以链接为键做集合对比：新增链接摄取入库，消失的链接从库中摘除并删除文件，
// 两边一致时仅刷新时间戳。单个文档摄取失败与旧文件摘除失败都不阻断，以警告返回
func (i *Ingestor) Edit(ctx context.Context, tuple memory.OwnerTuple, docs []DocumentInput) (*Result, error) {
	record, err := i.registry.Find(ctx, tuple)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, common.NewBusinessErrorf(common.CodeStoreNotFound,
			"归属 (%s, %s, %s) 的向量库尚未登记，请先执行首次摄取", tuple.Domain, tuple.Expert, tuple.Client)
	}
	vectorID := record.VectorID

	existingDocs, err := i.documents.ListByOwner(ctx, tuple)
	if err != nil {
		return nil, err
	}
	existingByLink := make(map[string]memory.Document, len(existingDocs))
	for _, doc := range existingDocs {
		existingByLink[doc.DocumentLink] = doc
	}
	desired := make(map[string]bool, len(docs))
	var toIngest []DocumentInput
	for _, doc := range docs {
		if desired[doc.Link] {
			continue
		}
		desired[doc.Link] = true
		if _, ok := existingByLink[doc.Link]; !ok {
			toIngest = append(toIngest, doc)
		}
	}
	var toRemove []memory.Document
	for _, doc := range existingDocs {
		if !desired[doc.DocumentLink] {
			toRemove = append(toRemove, doc)
		}
	}

	if len(toIngest) == 0 && len(toRemove) == 0 {
		if err := i.registry.Update(ctx, vectorID, map[string]any{"updated_at": time.Now()}); err != nil {
			return nil, err
		}
		return &Result{
			VectorID:  vectorID,
			KeptFiles: record.FileIDs,
			NoChanges: true,
		}, nil
	}

	owner := tuple.Owner()

	// 更新过程中单个文档失败不中止，跳过后以警告透出，下次更新自然重试
	files, warnings, err := i.ingestDocuments(ctx, owner, toIngest, false)
	if err != nil {
		return nil, err
	}
	newFileIDs := make([]string, 0, len(files))
	for _, f := range files {
		newFileIDs = append(newFileIDs, f.fileID)
	}

	var batch *engine.Batch
	if len(newFileIDs) > 0 {
		batch, err = i.engine.BatchIngest(ctx, vectorID, newFileIDs)
		if err != nil {
			i.cleanupUploads(ctx, files)
			metrics.DocumentsIngestedTotal.WithLabelValues(owner, "failed").Inc()
			return nil, err
		}
	}

	removedFileIDs := make([]string, 0, len(toRemove))
	removedSet := make(map[string]bool, len(toRemove))
	for _, doc := range toRemove {
		if err := i.engine.RemoveContent(ctx, vectorID, doc.OpenAIFileID); err != nil {
			warnings = append(warnings, "文件 "+doc.OpenAIFileID+" 从向量库摘除失败："+err.Error())
		}
		if err := i.engine.DeleteContent(ctx, doc.OpenAIFileID); err != nil {
			warnings = append(warnings, "文件 "+doc.OpenAIFileID+" 删除失败："+err.Error())
		}
		if err := i.documents.DeleteByFileID(ctx, doc.OpenAIFileID); err != nil {
			warnings = append(warnings, "文档引用 "+doc.OpenAIFileID+" 清理失败："+err.Error())
		}
		removedFileIDs = append(removedFileIDs, doc.OpenAIFileID)
		removedSet[doc.OpenAIFileID] = true
	}

	keptFileIDs := make([]string, 0, len(record.FileIDs))
	for _, id := range record.FileIDs {
		if !removedSet[id] {
			keptFileIDs = append(keptFileIDs, id)
		}
	}

	updates := map[string]any{
		"file_ids":   datatypes.JSONSlice[string](append(keptFileIDs, newFileIDs...)),
		"updated_at": time.Now(),
	}
	result := &Result{
		VectorID:      vectorID,
		IngestedFiles: newFileIDs,
		RemovedFiles:  removedFileIDs,
		KeptFiles:     keptFileIDs,
	}
	if batch != nil {
		updates["batch_ids"] = datatypes.JSONSlice[string](append(record.BatchIDs, batch.ID))
		updates["latest_batch_id"] = batch.ID
		result.BatchID = batch.ID
		result.BatchStatus = batch.Status
	}
	if err := i.registry.Update(ctx, vectorID, updates); err != nil {
		return nil, err
	}
	warnings = append(warnings, i.registerDocuments(ctx, tuple, files)...)
	metrics.DocumentsIngestedTotal.WithLabelValues(owner, "success").Add(float64(len(files)))
	logger.Info("向量库内容更新完成",
		zap.String("vector_id", vectorID),
		zap.Int("ingested", len(newFileIDs)),
		zap.Int("removed", len(removedFileIDs)))
	result.Warnings = warnings
	return result, nil
}

// AddOrEdit 按登记状态分派：未登记走首次摄取，已登记走追加更新
// 追加更新会把既有文档与新文档合并后执行 Edit，保证旧内容不被剔除
func (i *Ingestor) AddOrEdit(ctx context.Context, tuple memory.OwnerTuple, vectorID string, docs []DocumentInput) (*Result, error) {
	record, err := i.registry.Find(ctx, tuple)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return i.Add(ctx, tuple, vectorID, docs)
	}
	existingDocs, err := i.documents.ListByOwner(ctx, tuple)
	if err != nil {
		return nil, err
	}
	merged := make([]DocumentInput, 0, len(existingDocs)+len(docs))
	for _, doc := range existingDocs {
		merged = append(merged, DocumentInput{Name: doc.Name, Link: doc.DocumentLink})
	}
	merged = append(merged, docs...)
	return i.Edit(ctx, tuple, merged)
}
