package txtable

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/apitoolkit/timefusion/internal/txerrors"
)

// Credentials is the credential bag accepted when registering a project.
// Empty access/secret key pairs are dropped: the S3 client is then built
// with no credentials provider at all. No default credential chain
// (instance role, shared config file, environment) is consulted.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
}

// NewCredentials validates and normalizes a credential bag. HTTP endpoints
// are permitted (non-TLS object-store endpoints are common in local/dev
// deployments and in some on-prem S3-compatible stores); only the presence
// of a well-formed scheme is checked here.
func NewCredentials(accessKey, secretKey, endpoint *string) (Credentials, error) {
	c := Credentials{}
	if endpoint != nil {
		ep := strings.TrimSpace(*endpoint)
		if ep != "" && !strings.HasPrefix(ep, "http://") && !strings.HasPrefix(ep, "https://") {
			return Credentials{}, fmt.Errorf("txtable: endpoint %q must be http(s): %w", ep, txerrors.ErrCredential)
		}
		c.Endpoint = ep
	}

	hasAccess := accessKey != nil && strings.TrimSpace(*accessKey) != ""
	hasSecret := secretKey != nil && strings.TrimSpace(*secretKey) != ""
	switch {
	case hasAccess && hasSecret:
		c.AccessKeyID = strings.TrimSpace(*accessKey)
		c.SecretAccessKey = strings.TrimSpace(*secretKey)
	case hasAccess != hasSecret:
		return Credentials{}, fmt.Errorf("txtable: access key and secret key must both be set or both empty: %w", txerrors.ErrCredential)
	default:
		// Both empty: use ambient credentials.
	}

	return c, nil
}

// Provider returns an aws-sdk-go-v2 static credentials provider for this
// bag, or nil when the bag holds no keys; newClient then leaves the S3
// client's Credentials unset.
func (c Credentials) Provider() *credentials.StaticCredentialsProvider {
	if c.AccessKeyID == "" {
		return nil
	}
	p := credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, "")
	return &p
}
