// Package ingest 文档摄取：拉取文档内容并写入向量库
package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// 无法从文档名和链接推断扩展名时的兜底
const defaultExtension = ".pdf"

// Fetcher 文档内容拉取器，支持 HTTP 链接与本地路径
type Fetcher struct {
	client *http.Client
}

// NewFetcher 创建拉取器，timeout 约束单次下载总时长
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch 拉取文档内容，返回带扩展名的文件名与字节内容
func (f *Fetcher) Fetch(ctx context.Context, name, link string) (string, []byte, error) {
	var data []byte
	var err error
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		data, err = f.download(ctx, link)
	} else {
		data, err = os.ReadFile(link)
	}
	if err != nil {
		return "", nil, fmt.Errorf("拉取文档 %s 失败: %w", name, err)
	}
	return normalizeFilename(name, link), data, nil
}

func (f *Fetcher) download(ctx context.Context, link string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("下载返回状态码 %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// normalizeFilename 保证文件名带扩展名：
// 文档名自带扩展名时原样使用，否则尝试链接路径里的扩展名，最后兜底 .pdf
func normalizeFilename(name, link string) string {
	if filepath.Ext(name) != "" {
		return name
	}
	if parsed, err := url.Parse(link); err == nil {
		if ext := path.Ext(parsed.Path); ext != "" {
			return name + ext
		}
	}
	return name + defaultExtension
}
