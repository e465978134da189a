package domain

import "time"

// DeploymentStatus enumerates channel states.
type DeploymentStatus string

const (
	DeploymentActive   DeploymentStatus = "Active"
	DeploymentDisabled DeploymentStatus = "Disabled"
)

// Deployment is a release channel within an app. Client SDKs address it by
// its opaque key; the key never changes except through explicit rotation.
type Deployment struct {
	ID               string
	AppID            string
	DeploymentName   string
	Key              string
	MandatoryDefault bool
	Status           DeploymentStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
