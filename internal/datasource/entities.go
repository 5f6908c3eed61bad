// Package datasource bridges plugin-backed content sources into workflow
// node events.
package datasource

import (
	"context"
	"fmt"
)

// ProviderType is the kind of content source behind a datasource provider.
type ProviderType string

const (
	TypeOnlineDocument ProviderType = "online_document"
	TypeOnlineDrive    ProviderType = "online_drive"
	TypeWebsiteCrawl   ProviderType = "website_crawl"
	TypeLocalFile      ProviderType = "local_file"
)

// ProviderTypeOf validates a raw provider type string.
func ProviderTypeOf(s string) (ProviderType, error) {
	switch t := ProviderType(s); t {
	case TypeOnlineDocument, TypeOnlineDrive, TypeWebsiteCrawl, TypeLocalFile:
		return t, nil
	default:
		return "", fmt.Errorf("invalid datasource provider type %q", s)
	}
}

// MessageType discriminates messages a plugin stream yields.
type MessageType string

const (
	MessageTypeText       MessageType = "text"
	MessageTypeLink       MessageType = "link"
	MessageTypeVariable   MessageType = "variable"
	MessageTypeImage      MessageType = "image"
	MessageTypeImageLink  MessageType = "image_link"
	MessageTypeBinaryLink MessageType = "binary_link"
	MessageTypeFile       MessageType = "file"
)

// VariablePart is the payload of a VARIABLE message. Streamed parts carry an
// incremental textual piece; non-streamed parts carry the full value.
type VariablePart struct {
	Name   string
	Value  any
	Stream bool
}

// File is a resolved file handle flowing out of a datasource node.
type File struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Extension      string `json:"extension"`
	MimeType       string `json:"mime_type"`
	Size           int64  `json:"size"`
	URL            string `json:"url"`
	RelatedID      string `json:"related_id"`
	TransferMethod string `json:"transfer_method"`
}

// Message is one item of a plugin stream. Text carries the payload for TEXT
// and LINK messages and the URL for the link-style file messages.
type Message struct {
	Type     MessageType
	Text     string
	Variable *VariablePart
	File     *File
}

// MessageStream is a lazy, finite, non-restartable message sequence. Next
// returns io.EOF after the last message.
type MessageStream interface {
	Next() (*Message, error)
}

// OnlineDocumentPageRequest identifies one page of an online document source.
type OnlineDocumentPageRequest struct {
	WorkspaceID string
	PageID      string
	PageType    string
}

// OnlineDriveDownloadRequest identifies one file in an online drive.
type OnlineDriveDownloadRequest struct {
	Bucket string
	ID     string
}

// PluginRuntime is the plugin-side face of a datasource provider. A nil
// credentials map means the plugin falls back to its own default auth state.
type PluginRuntime interface {
	GetOnlineDocumentPageContent(ctx context.Context, userID string, req OnlineDocumentPageRequest, credentials map[string]string) (MessageStream, error)
	DownloadOnlineDriveFile(ctx context.Context, userID string, req OnlineDriveDownloadRequest, credentials map[string]string) (MessageStream, error)
	GetIconURL(tenantID string) string
}

// CredentialProvider resolves stored credentials for a datasource provider.
type CredentialProvider interface {
	GetDatasourceCredentials(ctx context.Context, tenantID, provider, pluginID, credentialID string) (map[string]string, error)
}
