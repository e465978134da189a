package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ReleaseMethod records how a package entered its deployment.
type ReleaseMethod string

const (
	ReleaseMethodUpload   ReleaseMethod = "Upload"
	ReleaseMethodPromote  ReleaseMethod = "Promote"
	ReleaseMethodRollback ReleaseMethod = "Rollback"
)

// Package is a single release within a deployment. LabelNum is the
// per-deployment release counter; Label is its rendered form ("v3").
// Labels are assigned at creation and never reused or decremented.
type Package struct {
	ID            string
	DeploymentID  string
	Label         string
	LabelNum      int
	AppVersion    string
	Description   string
	PackageHash   string
	BlobURL       string
	Size          int64
	IsDisabled    bool
	IsMandatory   bool
	Rollout       int
	ReleaseMethod ReleaseMethod
	UploadedBy    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FormatLabel renders a label counter value as shown to clients.
func FormatLabel(n int) string {
	return fmt.Sprintf("v%d", n)
}

// ParseLabel extracts the counter from a rendered label. Returns 0 for
// anything that is not a "v<N>" label, e.g. a bare app version reported by
// a device running the binary's bundled package.
func ParseLabel(label string) int {
	rest, ok := strings.CutPrefix(label, "v")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
