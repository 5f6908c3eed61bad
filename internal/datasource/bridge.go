package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/sirupsen/logrus"

	"corpus/internal/store"
)

// RunRequest describes one datasource node execution. Exactly one of
// DocumentRequest / DriveRequest must be set for the streaming kinds;
// DatasourceInfo carries the stored node configuration for the synchronous
// kinds.
type RunRequest struct {
	NodeID   string
	TenantID string
	UserID   string

	ProviderID   string
	PluginID     string
	ProviderName string
	ProviderType ProviderType
	CredentialID string

	DatasourceInfo  map[string]any
	DocumentRequest *OnlineDocumentPageRequest
	DriveRequest    *OnlineDriveDownloadRequest
}

// Bridge adapts plugin message streams into node events.
type Bridge struct {
	registry        *Registry
	credentials     CredentialProvider
	datasourceFiles store.DatasourceFileStore
	uploadFiles     store.UploadFileStore
	log             *logrus.Entry
}

func NewBridge(registry *Registry, credentials CredentialProvider, datasourceFiles store.DatasourceFileStore, uploadFiles store.UploadFileStore) *Bridge {
	return &Bridge{
		registry:        registry,
		credentials:     credentials,
		datasourceFiles: datasourceFiles,
		uploadFiles:     uploadFiles,
		log:             logrus.WithField("component", "datasource_bridge"),
	}
}

// RunNode executes one datasource node and returns its event channel. A
// malformed request (wrong shape for the kind) fails synchronously; every
// failure after that surfaces as a failed completion event on the channel,
// which is closed after the completion event.
func (b *Bridge) RunNode(ctx context.Context, req RunRequest) (<-chan NodeEvent, error) {
	switch req.ProviderType {
	case TypeOnlineDocument:
		if req.DocumentRequest == nil || req.DriveRequest != nil {
			return nil, fmt.Errorf("online document datasource requires exactly a document page request")
		}
	case TypeOnlineDrive:
		if req.DriveRequest == nil || req.DocumentRequest != nil {
			return nil, fmt.Errorf("online drive datasource requires exactly a drive download request")
		}
	case TypeWebsiteCrawl, TypeLocalFile:
	default:
		return nil, fmt.Errorf("invalid datasource provider type %q", req.ProviderType)
	}

	events := make(chan NodeEvent, 8)
	go func() {
		defer close(events)
		if err := b.run(ctx, req, events); err != nil {
			events <- CompletedEvent{
				Status:    StatusFailed,
				Error:     err.Error(),
				ErrorType: errorType(err),
			}
		}
	}()
	return events, nil
}

func (b *Bridge) run(ctx context.Context, req RunRequest, events chan<- NodeEvent) error {
	runtime, err := b.registry.Runtime(ctx, req.TenantID, req.ProviderID, req.ProviderType)
	if err != nil {
		return err
	}

	info := map[string]any{}
	for k, v := range req.DatasourceInfo {
		info[k] = v
	}
	info["icon"] = runtime.GetIconURL(req.TenantID)
	processData := map[string]any{"datasource_info": info}

	switch req.ProviderType {
	case TypeWebsiteCrawl:
		outputs := map[string]any{"datasource_type": string(req.ProviderType)}
		for k, v := range req.DatasourceInfo {
			outputs[k] = v
		}
		events <- CompletedEvent{Status: StatusSucceeded, Outputs: outputs, ProcessData: processData}
		return nil

	case TypeLocalFile:
		file, err := b.resolveLocalFile(ctx, req)
		if err != nil {
			return err
		}
		events <- CompletedEvent{
			Status:      StatusSucceeded,
			Variables:   map[string]any{"file": file},
			Outputs:     map[string]any{"file": file, "datasource_type": string(req.ProviderType)},
			ProcessData: processData,
		}
		return nil
	}

	credentials, err := b.credentials.GetDatasourceCredentials(ctx, req.TenantID, req.ProviderName, req.PluginID, req.CredentialID)
	if err != nil {
		return NewNodeError("resolve datasource credentials: %v", err)
	}

	var stream MessageStream
	switch req.ProviderType {
	case TypeOnlineDocument:
		stream, err = runtime.GetOnlineDocumentPageContent(ctx, req.UserID, *req.DocumentRequest, credentials)
	case TypeOnlineDrive:
		stream, err = runtime.DownloadOnlineDriveFile(ctx, req.UserID, *req.DriveRequest, credentials)
	}
	if err != nil {
		return err
	}

	return b.consume(ctx, req, stream, processData, events)
}

func (b *Bridge) consume(ctx context.Context, req RunRequest, stream MessageStream, processData map[string]any, events chan<- NodeEvent) error {
	textSelector := []string{req.NodeID, "text"}
	variables := map[string]any{}
	var outputFile *File

	for {
		msg, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		switch msg.Type {
		case MessageTypeText:
			events <- StreamChunkEvent{Selector: textSelector, Chunk: msg.Text}

		case MessageTypeLink:
			events <- StreamChunkEvent{Selector: textSelector, Chunk: fmt.Sprintf("Link: %s\n", msg.Text)}

		case MessageTypeVariable:
			if msg.Variable == nil {
				continue
			}
			name := msg.Variable.Name
			if msg.Variable.Stream {
				piece, ok := msg.Variable.Value.(string)
				if !ok {
					return NewNodeError("streaming variable %q must be a string", name)
				}
				existing, _ := variables[name].(string)
				variables[name] = existing + piece
				events <- StreamChunkEvent{Selector: []string{req.NodeID, name}, Chunk: piece}
			} else {
				variables[name] = msg.Variable.Value
			}

		case MessageTypeImage, MessageTypeImageLink, MessageTypeBinaryLink:
			file, err := b.resolveStreamedFile(ctx, req.TenantID, msg.Text)
			if err != nil {
				return err
			}
			outputFile = file

		case MessageTypeFile:
			if req.ProviderType == TypeOnlineDrive && msg.File != nil {
				outputFile = msg.File
			}

		default:
			b.log.WithField("message_type", msg.Type).Debug("ignoring datasource message")
		}
	}

	events <- StreamChunkEvent{Selector: textSelector, Chunk: "", IsFinal: true}

	switch req.ProviderType {
	case TypeOnlineDocument:
		events <- CompletedEvent{
			Status:      StatusSucceeded,
			Outputs:     variables,
			ProcessData: processData,
		}
	case TypeOnlineDrive:
		outputs := map[string]any{"datasource_type": string(req.ProviderType)}
		result := CompletedEvent{Status: StatusSucceeded, ProcessData: processData}
		if outputFile != nil {
			outputs["file"] = outputFile
			result.Variables = map[string]any{"file": outputFile}
		}
		result.Outputs = outputs
		events <- result
	}
	return nil
}

// resolveStreamedFile maps a persisted-file URL back to its storage record.
// The file id is the URL's last path segment with the extension stripped.
func (b *Bridge) resolveStreamedFile(ctx context.Context, tenantID, rawURL string) (*File, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, NewNodeError("invalid file url %q: %v", rawURL, err)
	}
	base := path.Base(parsed.Path)
	id := strings.TrimSuffix(base, path.Ext(base))
	if id == "" || id == "." || id == "/" {
		return nil, NewNodeError("file url %q carries no file id", rawURL)
	}

	record, err := b.datasourceFiles.GetDatasourceFile(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewNodeError("file %s not found", id)
		}
		return nil, NewNodeError("load file %s: %v", id, err)
	}
	return &File{
		ID:             record.ID,
		Name:           base,
		Extension:      strings.TrimPrefix(path.Ext(base), "."),
		MimeType:       record.MimeType,
		Size:           record.Size,
		URL:            record.SourceURL,
		RelatedID:      record.ID,
		TransferMethod: "tool_file",
	}, nil
}

func (b *Bridge) resolveLocalFile(ctx context.Context, req RunRequest) (*File, error) {
	relatedID, _ := req.DatasourceInfo["related_id"].(string)
	if relatedID == "" {
		return nil, NewNodeError("file is not exist")
	}
	record, err := b.uploadFiles.GetUploadFile(ctx, req.TenantID, relatedID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewNodeError("file %s not found", relatedID)
		}
		return nil, NewNodeError("load file %s: %v", relatedID, err)
	}
	return &File{
		ID:             record.ID,
		Name:           record.Name,
		Extension:      record.Extension,
		MimeType:       record.MimeType,
		Size:           record.Size,
		URL:            record.SourceURL,
		RelatedID:      record.ID,
		TransferMethod: "local_file",
	}, nil
}
