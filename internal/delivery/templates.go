// Package delivery fulfils completed orders: template downloads, PDF
// rendering of drafted documents, and outbound mail.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lexserve/api/internal/domain"
	"github.com/lexserve/api/internal/platform/storage"
	"github.com/lexserve/api/internal/services"
)

// templateFiles maps document categories to their template objects under the
// templates prefix of the templates bucket.
var templateFiles = map[domain.DocumentType]string{
	domain.DocumentTypeComplaint:             "police-complaint.html",
	domain.DocumentTypeAffidavit:             "general-affidavit.html",
	domain.DocumentTypeGeneralAffidavit:      "general-affidavit.html",
	domain.DocumentTypeAgreement:             "two-party-agreement.html",
	domain.DocumentTypeContract:              "service-contract.html",
	domain.DocumentTypePowerOfAttorney:       "power-of-attorney.html",
	domain.DocumentTypeEducationGapAffidavit: "education-gap-affidavit.html",
	domain.DocumentTypeIndemnityBond:         "indemnity-bond.html",
	domain.DocumentTypeLegalHeirCertificate:  "legal-heir-certificate.html",
	domain.DocumentTypeCourtEvidence:         "court-evidence-affidavit.html",
}

// URLSigner issues time-limited download URLs for storage objects.
type URLSigner interface {
	SignedURL(ctx context.Context, bucket, object string, opts storage.SignedURLOptions) (storage.SignedURLResult, error)
}

// TemplateLibraryDeps bundles collaborators for the template library.
type TemplateLibraryDeps struct {
	Signer URLSigner
	Bucket string
	// ArtifactsBucket holds order-bound objects (drafts, notary scans,
	// review uploads). Defaults to Bucket when unset.
	ArtifactsBucket string
	SignedURLTTL    time.Duration
}

// TemplateLibrary resolves document templates to storage objects and signs
// download URLs for them.
type TemplateLibrary struct {
	signer    URLSigner
	bucket    string
	artifacts string
	ttl       time.Duration
}

// NewTemplateLibrary wires dependencies into a template library.
func NewTemplateLibrary(deps TemplateLibraryDeps) (*TemplateLibrary, error) {
	if deps.Signer == nil {
		return nil, errors.New("delivery: url signer is required")
	}
	if strings.TrimSpace(deps.Bucket) == "" {
		return nil, errors.New("delivery: templates bucket is required")
	}

	artifacts := strings.TrimSpace(deps.ArtifactsBucket)
	if artifacts == "" {
		artifacts = deps.Bucket
	}

	ttl := deps.SignedURLTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	return &TemplateLibrary{
		signer:    deps.Signer,
		bucket:    deps.Bucket,
		artifacts: artifacts,
		ttl:       ttl,
	}, nil
}

// ResolveTemplate returns the object path of the template for the document type.
func (l *TemplateLibrary) ResolveTemplate(documentType domain.DocumentType) (string, error) {
	fileName, ok := templateFiles[documentType]
	if !ok {
		return "", fmt.Errorf("%w: document type %s", services.ErrTemplateNotFound, documentType)
	}
	return storage.BuildObjectPath(storage.PurposeTemplate, storage.PathParams{
		DocumentType: string(documentType),
		FileName:     fileName,
	})
}

// SignedDownloadURL issues a time limited URL for the object. Template
// objects are public; order-bound artifacts require the owner or staff on
// the calling context. The attachment disposition keeps browsers downloading
// rather than rendering.
func (l *TemplateLibrary) SignedDownloadURL(ctx context.Context, objectPath, ownerID string) (string, time.Time, error) {
	objectPath = strings.TrimSpace(objectPath)
	if objectPath == "" {
		return "", time.Time{}, errors.New("delivery: object path is required")
	}

	bucket := l.artifacts
	anonymous := false
	if strings.HasPrefix(objectPath, "templates/") {
		bucket = l.bucket
		anonymous = true
	}

	identity, err := storage.AuthorizeDownloadFromContext(ctx, ownerID, anonymous)
	if err != nil {
		return "", time.Time{}, err
	}

	result, err := l.signer.SignedURL(ctx, bucket, objectPath, storage.SignedURLOptions{
		Download: &storage.DownloadOptions{
			Method:         "GET",
			ExpiresIn:      l.ttl,
			Disposition:    fmt.Sprintf("attachment; filename=%q", fileNameOf(objectPath)),
			OwnerID:        ownerID,
			Identity:       identity,
			AllowAnonymous: anonymous,
		},
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("delivery: sign download url: %w", err)
	}
	return result.URL, result.ExpiresAt, nil
}

// Scan uploads are limited to the formats the notary desk produces.
var scanContentTypes = []string{"application/pdf", "image/jpeg", "image/png"}

const maxScanUploadBytes = 25 << 20

// ScanUploadGrant carries a signed upload URL plus the object key the scan
// must be attached under afterwards.
type ScanUploadGrant struct {
	ObjectPath string
	URL        string
	Method     string
	ExpiresAt  time.Time
	Headers    map[string]string
}

// SignedScanUploadURL issues a signed PUT URL for a notary scan object. The
// caller uploads directly to the artifacts bucket and then attaches the scan
// by its object path.
func (l *TemplateLibrary) SignedScanUploadURL(ctx context.Context, orderID, fileName, contentType string) (ScanUploadGrant, error) {
	objectPath, err := storage.BuildObjectPath(storage.PurposeNotaryScan, storage.PathParams{
		OrderID:  orderID,
		FileName: fileName,
	})
	if err != nil {
		return ScanUploadGrant{}, fmt.Errorf("delivery: scan object path: %w", err)
	}

	result, err := l.signer.SignedURL(ctx, l.artifacts, objectPath, storage.SignedURLOptions{
		Upload: &storage.UploadOptions{
			Method:              "PUT",
			ContentType:         contentType,
			AllowedContentTypes: scanContentTypes,
			MaxSize:             maxScanUploadBytes,
			ExpiresIn:           l.ttl,
		},
	})
	if err != nil {
		return ScanUploadGrant{}, fmt.Errorf("delivery: sign scan upload url: %w", err)
	}
	return ScanUploadGrant{
		ObjectPath: objectPath,
		URL:        result.URL,
		Method:     result.Method,
		ExpiresAt:  result.ExpiresAt,
		Headers:    result.Headers,
	}, nil
}

var _ services.TemplateLibrary = (*TemplateLibrary)(nil)

func fileNameOf(objectPath string) string {
	if idx := strings.LastIndex(objectPath, "/"); idx >= 0 {
		return objectPath[idx+1:]
	}
	return objectPath
}
