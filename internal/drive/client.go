package drive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	docs "google.golang.org/api/docs/v1"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	documentMimeType = "application/vnd.google-apps.document"
	folderMimeType   = "application/vnd.google-apps.folder"
)

var (
	// ErrMissingCredentials indicates no service account credentials were
	// configured.
	ErrMissingCredentials = errors.New("drive: google credentials are required")
	// ErrNotAFolder indicates the configured id points at something other
	// than a folder.
	ErrNotAFolder = errors.New("drive: id does not point to a folder")
)

// ClientConfig bundles configuration for the document source client.
// CredentialsJSON wins over CredentialsFile when both are set. HTTPClient
// bypasses service account auth entirely and exists for tests.
type ClientConfig struct {
	CredentialsJSON string
	CredentialsFile string
	HTTPClient      *http.Client
	Logger          *zap.Logger
}

// Client reads meeting documents out of shared folders.
type Client struct {
	files  *drive.Service
	docs   *docs.Service
	logger *zap.Logger
}

// NewClient constructs a document source client with read-only scopes.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	var options []option.ClientOption
	switch {
	case cfg.HTTPClient != nil:
		options = []option.ClientOption{option.WithHTTPClient(cfg.HTTPClient)}
	case cfg.CredentialsJSON != "":
		options = []option.ClientOption{
			option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)),
			option.WithScopes(drive.DriveReadonlyScope, docs.DocumentsReadonlyScope),
		}
	case cfg.CredentialsFile != "":
		options = []option.ClientOption{
			option.WithCredentialsFile(cfg.CredentialsFile),
			option.WithScopes(drive.DriveReadonlyScope, docs.DocumentsReadonlyScope),
		}
	default:
		return nil, ErrMissingCredentials
	}

	filesService, err := drive.NewService(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("drive: create files service: %w", err)
	}
	docsService, err := docs.NewService(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("drive: create docs service: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{files: filesService, docs: docsService, logger: logger}, nil
}

// Document is one listed file in a watched folder.
type Document struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	CreatedTime  string `json:"createdTime"`
	ModifiedTime string `json:"modifiedTime"`
}

func folderQuery(folderID string) string {
	return fmt.Sprintf("'%s' in parents and mimeType='%s' and trashed=false", folderID, documentMimeType)
}

// ListFolderDocs lists the documents in a folder, newest first.
func (c *Client) ListFolderDocs(ctx context.Context, folderID string) ([]Document, error) {
	response, err := c.files.Files.List().
		Q(folderQuery(folderID)).
		Fields("files(id, name, createdTime, modifiedTime)").
		OrderBy("createdTime desc").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("drive: list folder %s: %w", folderID, err)
	}

	documents := make([]Document, 0, len(response.Files))
	for _, file := range response.Files {
		documents = append(documents, Document{
			ID:           file.Id,
			Name:         file.Name,
			CreatedTime:  file.CreatedTime,
			ModifiedTime: file.ModifiedTime,
		})
	}
	return documents, nil
}

// DocumentContent is a document flattened to plain text.
type DocumentContent struct {
	DocumentID string `json:"documentId"`
	Title      string `json:"title"`
	Text       string `json:"text"`
}

// DocumentText fetches a document and flattens its body to plain text.
func (c *Client) DocumentText(ctx context.Context, documentID string) (DocumentContent, error) {
	document, err := c.docs.Documents.Get(documentID).Context(ctx).Do()
	if err != nil {
		return DocumentContent{}, fmt.Errorf("drive: get document %s: %w", documentID, err)
	}

	title := document.Title
	if title == "" {
		title = "Untitled"
	}
	return DocumentContent{
		DocumentID: documentID,
		Title:      title,
		Text:       flattenBody(document.Body),
	}, nil
}

// VerifyFolderAccess confirms the folder id is reachable and actually a
// folder, returning its display name.
func (c *Client) VerifyFolderAccess(ctx context.Context, folderID string) (string, error) {
	file, err := c.files.Files.Get(folderID).
		Fields("id, name, mimeType").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("drive: verify folder %s: %w", folderID, err)
	}
	if file.MimeType != folderMimeType {
		return "", fmt.Errorf("%w: %s is %s", ErrNotAFolder, folderID, file.MimeType)
	}
	return file.Name, nil
}

func flattenBody(body *docs.Body) string {
	if body == nil {
		return ""
	}
	var builder strings.Builder
	for _, element := range body.Content {
		builder.WriteString(flattenElement(element))
	}
	return strings.TrimSpace(builder.String())
}

// flattenElement renders one structural element as text. Table cells join
// with tabs inside a row and rows join with newlines, so tabular content
// stays readable for the summarizer.
func flattenElement(element *docs.StructuralElement) string {
	if element == nil {
		return ""
	}
	if element.Paragraph != nil {
		var builder strings.Builder
		for _, span := range element.Paragraph.Elements {
			if span.TextRun != nil {
				builder.WriteString(span.TextRun.Content)
			}
		}
		return builder.String()
	}
	if element.Table != nil {
		rows := make([]string, 0, len(element.Table.TableRows))
		for _, row := range element.Table.TableRows {
			cells := make([]string, 0, len(row.TableCells))
			for _, cell := range row.TableCells {
				var builder strings.Builder
				for _, content := range cell.Content {
					builder.WriteString(flattenElement(content))
				}
				cells = append(cells, builder.String())
			}
			rows = append(rows, strings.Join(cells, "\t"))
		}
		return strings.Join(rows, "\n")
	}
	return ""
}
