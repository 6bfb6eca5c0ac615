package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gcs "cloud.google.com/go/storage"
	"github.com/go-pdf/fpdf"

	"github.com/lexserve/api/internal/domain"
	"github.com/lexserve/api/internal/platform/storage"
	"github.com/lexserve/api/internal/services"
)

const draftFileName = "draft.pdf"

// PDFRenderer lays drafted document text onto an A4 PDF and stores it
// alongside the order.
type PDFRenderer struct {
	client *gcs.Client
	bucket string
}

// NewPDFRenderer wires the storage client and destination bucket.
func NewPDFRenderer(client *gcs.Client, bucket string) (*PDFRenderer, error) {
	if client == nil {
		return nil, errors.New("delivery: storage client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("delivery: drafts bucket is required")
	}
	return &PDFRenderer{client: client, bucket: bucket}, nil
}

// RenderDraft produces the PDF for the drafted body and uploads it under the
// order's draft path, returning the object path.
func (r *PDFRenderer) RenderDraft(ctx context.Context, order domain.ServiceOrder, body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", errors.New("delivery: draft body is empty")
	}

	objectPath, err := storage.BuildObjectPath(storage.PurposeDraft, storage.PathParams{
		OrderID:  order.ID,
		FileName: draftFileName,
	})
	if err != nil {
		return "", fmt.Errorf("delivery: draft path: %w", err)
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(order.ServiceName, true)
	pdf.AddPage()
	pdf.SetFont("Times", "B", 14)
	pdf.MultiCell(0, 8, heading(order), "", "C", false)
	pdf.Ln(4)
	pdf.SetFont("Times", "", 12)
	for _, paragraph := range strings.Split(body, "\n") {
		pdf.MultiCell(0, 6, paragraph, "", "L", false)
		pdf.Ln(2)
	}

	writer := r.client.Bucket(r.bucket).Object(objectPath).NewWriter(ctx)
	writer.ContentType = "application/pdf"
	if err := pdf.Output(writer); err != nil {
		writer.Close()
		return "", fmt.Errorf("delivery: render pdf: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("delivery: upload draft: %w", err)
	}

	return objectPath, nil
}

var _ services.DocumentRenderer = (*PDFRenderer)(nil)

func heading(order domain.ServiceOrder) string {
	if order.ServiceName != "" {
		return strings.ToUpper(order.ServiceName)
	}
	return strings.ToUpper(strings.ReplaceAll(string(order.DocumentType), "_", " "))
}
