package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"k8s.io/klog/v2"

	"github.com/fl64/ansible-demo/scm-inventory/internal/awx"
	"github.com/fl64/ansible-demo/scm-inventory/internal/config"
	"github.com/fl64/ansible-demo/scm-inventory/internal/inventory"
)

// ProjectNotFoundError is returned when the project name does not resolve
type ProjectNotFoundError struct {
	Project string
	Err     error
}

func (e *ProjectNotFoundError) Error() string {
	return fmt.Sprintf("Could not find project '%s'", e.Project)
}

func (e *ProjectNotFoundError) Unwrap() error { return e.Err }

// InventoryError is returned when the inventory file cannot be located,
// read or parsed
type InventoryError struct {
	Project string
	File    string
	Err     error
}

func (e *InventoryError) Error() string {
	return fmt.Sprintf("Parse of inventory file '%s' in project '%s' failed: %v", e.File, e.Project, e.Err)
}

func (e *InventoryError) Unwrap() error { return e.Err }

// SyncTimeoutError is returned in strict mode when the project update is
// still running after the whole wait budget
type SyncTimeoutError struct {
	Project string
	Checks  int
}

func (e *SyncTimeoutError) Error() string {
	return fmt.Sprintf("Project '%s' is still updating after %d checks", e.Project, e.Checks)
}

// Controller produces the dynamic inventory of one project
type Controller struct {
	awxClient *awx.Client
	cfg       *config.Config
}

// New creates a new controller
func New(cfg *config.Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	awxClient := awx.NewClient(cfg.AWXURL, awx.Credentials{
		Token:    cfg.Token,
		Username: cfg.Username,
		Password: cfg.Password,
	}, cfg.VerifySSL)

	return &Controller{
		awxClient: awxClient,
		cfg:       cfg,
	}, nil
}

// List resolves the project, waits for its SCM update and parses the
// inventory file from its synced copy.
func (c *Controller) List(ctx context.Context) (*inventory.Document, error) {
	projectID, err := c.awxClient.GetProjectID(ctx, c.cfg.ProjectName)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		klog.V(1).Infof("Project lookup failed: %v", err)
		return nil, &ProjectNotFoundError{Project: c.cfg.ProjectName, Err: err}
	}
	klog.V(2).Infof("Project '%s' has ID %d", c.cfg.ProjectName, projectID)

	if err := c.waitForSync(ctx, projectID); err != nil {
		return nil, err
	}

	inv, err := c.readInventory(ctx, projectID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &InventoryError{Project: c.cfg.ProjectName, File: c.cfg.InventoryFile, Err: err}
	}

	return inv.Document(), nil
}

// waitForSync applies the sync policy: proceed on anything but a timeout
// in strict mode.
func (c *Controller) waitForSync(ctx context.Context, projectID int) error {
	result, err := c.awxClient.WaitForProjectUpdate(ctx, projectID, c.cfg.SyncAttempts, c.cfg.SyncInterval)
	if err != nil {
		return err
	}

	switch result.State {
	case awx.SyncCompleted:
		klog.V(2).Infof("Project %d is in sync after %d checks", projectID, result.Checks)
	case awx.SyncLookupFailed:
		klog.Warningf("Could not check project %d for a running update: %v", projectID, result.Err)
	case awx.SyncInProgress:
		if c.cfg.StrictSync {
			return &SyncTimeoutError{Project: c.cfg.ProjectName, Checks: result.Checks}
		}
		klog.Warningf("Project %d is still updating after %d checks, reading inventory anyway", projectID, result.Checks)
	}
	return nil
}

// readInventory locates the project's synced tree and parses the inventory in it.
func (c *Controller) readInventory(ctx context.Context, projectID int) (*inventory.Inventory, error) {
	project, err := c.awxClient.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	path, err := inventoryPath(c.cfg.ProjectsRoot, project.LocalPath, c.cfg.InventoryFile)
	if err != nil {
		return nil, err
	}
	klog.V(1).Infof("Reading inventory %s", path)

	return inventory.ParseFile(path)
}

// inventoryPath joins root/localPath/file, refusing paths that leave root.
func inventoryPath(root, localPath, file string) (string, error) {
	if localPath == "" {
		return "", errors.New("project has no local path")
	}

	root = filepath.Clean(root)
	projectDir := filepath.Join(root, localPath)
	if !within(root, projectDir) || projectDir == root {
		return "", fmt.Errorf("local path '%s' is outside %s", localPath, root)
	}

	path := filepath.Join(projectDir, file)
	if !within(projectDir, path) || path == projectDir {
		return "", fmt.Errorf("inventory file '%s' is outside the project", file)
	}
	return path, nil
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Run writes the inventory document to w. Nothing is written on failure.
func (c *Controller) Run(ctx context.Context, w io.Writer) error {
	doc, err := c.List(ctx)
	if err != nil {
		return err
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding inventory: %w", err)
	}
	out = append(out, '\n')

	_, err = w.Write(out)
	return err
}

// Start runs the controller with signal handling
func (c *Controller) Start(w io.Writer) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			klog.Infof("Received signal %v, shutting down...", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return c.Run(ctx, w)
}
