package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	shell "github.com/ipfs/go-ipfs-api"
	"github.com/ruteri/trex-suite-provisioning/interfaces"
)

// IPFSBackend stores content on an IPFS node through its HTTP API. IPFS
// addresses content by CID, so the backend pins an MFS path per content ID
// (/trex/<content type>/<content id>) to make SHA-256 lookups possible.
type IPFSBackend struct {
	shell       *shell.Shell
	host        string
	port        string
	root        string
	log         *slog.Logger
	locationURI string

	mu sync.Mutex
}

// NewIPFSBackend connects to the API of an IPFS node at host:port.
func NewIPFSBackend(host, port string, timeout time.Duration, log *slog.Logger) *IPFSBackend {
	apiURL := fmt.Sprintf("%s:%s", host, port)
	sh := shell.NewShell(apiURL)
	sh.SetTimeout(timeout)

	return &IPFSBackend{
		shell:       sh,
		host:        host,
		port:        port,
		root:        "/trex",
		log:         log,
		locationURI: fmt.Sprintf("ipfs://%s/?timeout=%s", apiURL, timeout),
	}
}

// Fetch reads the MFS entry for id.
func (b *IPFSBackend) Fetch(ctx context.Context, id interfaces.ContentID, contentType interfaces.ContentType) ([]byte, error) {
	if !b.shell.IsUp() {
		return nil, interfaces.ErrBackendUnavailable
	}

	mfsPath := b.mfsPath(id, contentType)
	reader, err := b.shell.FilesRead(ctx, mfsPath)
	if err != nil {
		if strings.Contains(err.Error(), "does not exist") || strings.Contains(err.Error(), "no link named") {
			return nil, interfaces.ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to read %s from IPFS: %w", mfsPath, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read data from IPFS: %w", err)
	}

	b.log.Debug("Fetched content from IPFS",
		slog.String("path", mfsPath),
		slog.Int("size", len(data)))

	return data, nil
}

// Store adds data to IPFS and links the resulting CID into MFS.
func (b *IPFSBackend) Store(ctx context.Context, data []byte, contentType interfaces.ContentType) (interfaces.ContentID, error) {
	id := interfaces.ComputeID(data)

	if !b.shell.IsUp() {
		return id, interfaces.ErrBackendUnavailable
	}

	cid, err := b.shell.Add(bytes.NewReader(data), shell.Pin(true))
	if err != nil {
		return id, fmt.Errorf("failed to add data to IPFS: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	dir := fmt.Sprintf("%s/%s", b.root, contentType)
	if err := b.shell.FilesMkdir(ctx, dir, shell.FilesMkdir.Parents(true)); err != nil {
		return id, fmt.Errorf("failed to create IPFS directory %s: %w", dir, err)
	}

	mfsPath := b.mfsPath(id, contentType)
	if _, err := b.shell.FilesStat(ctx, mfsPath); err == nil {
		return id, nil
	}
	if err := b.shell.FilesCp(ctx, "/ipfs/"+cid, mfsPath); err != nil {
		return id, fmt.Errorf("failed to link %s into IPFS MFS: %w", cid, err)
	}

	b.log.Debug("Stored content in IPFS",
		slog.String("ipfsCID", cid),
		slog.String("contentID", id.String()))

	return id, nil
}

func (b *IPFSBackend) Available(ctx context.Context) bool {
	return b.shell.IsUp()
}

func (b *IPFSBackend) Name() string {
	return fmt.Sprintf("ipfs-%s-%s", b.host, b.port)
}

func (b *IPFSBackend) LocationURI() string {
	return b.locationURI
}

func (b *IPFSBackend) mfsPath(id interfaces.ContentID, contentType interfaces.ContentType) string {
	return fmt.Sprintf("%s/%s/%s", b.root, contentType, id)
}
