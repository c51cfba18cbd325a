// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package cloud

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"

	"github.com/agentcloud/agentsync/lib/entity"
	"github.com/agentcloud/agentsync/lib/graphql"
	"github.com/agentcloud/agentsync/lib/netutil"
)

// UploadConcurrency bounds parallel file uploads of one create.
const UploadConcurrency = 4

// SourcesField carries the file manifest on each created item.
const SourcesField = "sources"

// UploadOutcome is the result of uploading one file.
type UploadOutcome struct {
	ID     string `json:"id"`
	File   string `json:"file"`
	Bytes  int64  `json:"bytes,omitempty"`
	Digest string `json:"blake3,omitempty"`
	Error  string `json:"error,omitempty"`
}

// UploadReport splits upload outcomes by success.
type UploadReport struct {
	Succeeded []UploadOutcome `json:"success"`
	Failed    []UploadOutcome `json:"failed"`
}

// CreateWithFilesResult carries the create outcome and, when the create
// succeeded, the per-file upload outcomes. Failed uploads do not change
// Create.
type CreateWithFilesResult struct {
	Create  SyncResult   `json:"create"`
	Uploads UploadReport `json:"uploads"`
}

// uploadTarget is one presigned URL from the create response.
type uploadTarget struct {
	id   string
	file string
	url  string
}

// CreateWithFiles creates items together with the files under dir. Each
// item gets the comma-separated relative paths of the files as its
// sources field. The create response maps each id to presigned URLs;
// every listed file is then uploaded with a PUT.
//
// An error is returned only when dir cannot be read or the kind has no
// file-create root. Everything else is reported in the result.
func (s *Service) CreateWithFiles(ctx context.Context, items []any, dir string, opts ...SyncOption) (*CreateWithFilesResult, error) {
	root, ok := graphql.FileRoot(s.kind)
	if !ok {
		return nil, fmt.Errorf("%w: create with files %s", graphql.ErrUnsupportedOperation, s.kind)
	}
	files, err := listFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("cloud: listing %s: %w", dir, err)
	}
	manifest := strings.Join(files, ",")

	result := &CreateWithFilesResult{}
	if len(items) == 0 {
		result.Create = synced(0)
		return result, nil
	}
	if strings.TrimSpace(s.host.AuthToken()) == "" {
		result.Create = failure(ReasonNoAuthToken, ErrNoAuthToken.Error())
		return result, nil
	}
	records, err := entity.AsRecords(items)
	if err != nil {
		result.Create = failure(ReasonInvalidInput, err.Error())
		return result, nil
	}
	records, warnings, err := s.toWire(records)
	if err != nil {
		result.Create = failure(ReasonUnsupported, err.Error())
		return result, nil
	}
	for _, record := range records {
		record[SourcesField] = manifest
	}

	options := collectOptions(opts)
	query, err := s.builder.Render(s.kind, root, records, options.settings)
	if err != nil {
		result.Create = failure(ReasonInvalidInput, err.Error())
		return result, nil
	}
	result.Create = s.execute(ctx, root, query, options.timeout, len(items))
	result.Create.Warnings = append(warnings, result.Create.Warnings...)
	if !result.Create.Success {
		s.logger.Warn("create with files failed", "root", root.Field, "reason", result.Create.Reason, "error", result.Create.Error())
		return result, nil
	}

	targets, err := parseUploadTargets(result.Create.Response)
	if err != nil {
		s.logger.Warn("create response has no upload URLs", "root", root.Field, "error", err)
		result.Create.Warnings = append(result.Create.Warnings, err.Error())
		return result, nil
	}
	result.Uploads = s.upload(ctx, dir, files, targets)
	if len(result.Uploads.Failed) > 0 {
		s.logger.Warn("some file uploads failed",
			"succeeded", len(result.Uploads.Succeeded),
			"failed", len(result.Uploads.Failed),
		)
	}
	return result, nil
}

// listFiles returns the regular files under dir as sorted slash paths
// relative to dir.
func listFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// parseUploadTargets reads {"<id>": [{"file": ..., "url": ...}]}.
func parseUploadTargets(raw []byte) ([]uploadTarget, error) {
	value, err := decodeAWSJSON(raw)
	if err != nil {
		return nil, err
	}
	object, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("upload targets: result is %T, want an object", value)
	}
	var targets []uploadTarget
	for _, id := range sortedKeys(object) {
		entries, ok := object[id].([]any)
		if !ok {
			continue
		}
		for _, entry := range entries {
			fields, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			file, _ := fields["file"].(string)
			url, _ := fields["url"].(string)
			if file == "" || url == "" {
				continue
			}
			targets = append(targets, uploadTarget{id: id, file: file, url: url})
		}
	}
	if len(targets) == 0 {
		return nil, errors.New("upload targets: none in result")
	}
	return targets, nil
}

func (s *Service) upload(ctx context.Context, dir string, files []string, targets []uploadTarget) UploadReport {
	listed := make(map[string]bool, len(files))
	for _, f := range files {
		listed[f] = true
	}
	httpClient := s.host.HTTPClient(s.kind)
	if httpClient == nil {
		httpClient = s.client.HTTPClient()
	}

	outcomes := make([]UploadOutcome, len(targets))
	var group errgroup.Group
	group.SetLimit(UploadConcurrency)
	for i, target := range targets {
		group.Go(func() error {
			outcome := UploadOutcome{ID: target.id, File: target.file}
			if !listed[target.file] {
				outcome.Error = "file is not in the source manifest"
			} else {
				local := filepath.Join(dir, filepath.FromSlash(target.file))
				size, digest, err := putFile(ctx, httpClient, target.url, local)
				if err != nil {
					outcome.Error = err.Error()
				} else {
					outcome.Bytes, outcome.Digest = size, digest
				}
			}
			outcomes[i] = outcome
			return nil
		})
	}
	_ = group.Wait()

	var report UploadReport
	for _, outcome := range outcomes {
		if outcome.Error != "" {
			s.logger.Warn("file upload failed", "id", outcome.ID, "file", outcome.File, "error", outcome.Error)
			report.Failed = append(report.Failed, outcome)
			continue
		}
		report.Succeeded = append(report.Succeeded, outcome)
	}
	return report
}

// putFile uploads one file to a presigned URL and returns its size and
// BLAKE3 digest. Presigned URLs carry their own authorization.
func putFile(ctx context.Context, httpClient *http.Client, url, local string) (int64, string, error) {
	file, err := os.Open(local)
	if err != nil {
		return 0, "", err
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return 0, "", err
	}

	hasher := blake3.New()
	var body io.Reader = io.TeeReader(file, hasher)
	if info.Size() == 0 {
		body = http.NoBody
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return 0, "", err
	}
	request.ContentLength = info.Size()
	contentType := mime.TypeByExtension(filepath.Ext(local))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	request.Header.Set("Content-Type", contentType)

	response, err := httpClient.Do(request)
	if err != nil {
		return 0, "", err
	}
	defer response.Body.Close()
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return 0, "", fmt.Errorf("upload returned %d: %s", response.StatusCode, netutil.ErrorBody(response.Body))
	}
	return info.Size(), hex.EncodeToString(hasher.Sum(nil)), nil
}
