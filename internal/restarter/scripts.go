// Package restarter implements the host-side helper that pulls, recreates
// and re-certifies the swarm's docker-compose stacks on request.
package restarter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ccheshirecat/swarmctl/internal/config"
)

const (
	swarmImage      = "sphinxlightning/sphinx-swarm:latest"
	swarmContainer  = "sphinx-swarm"
	superAdminImage = "sphinxlightning/sphinx-swarm-superadmin"
	superAdminName  = "sphinx-swarm-superadmin"
	certDomain      = "sphinx.chat"
	adminHome       = "/home/admin"
)

var bucketPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.\-]{1,61}[a-z0-9]$`)

// ValidBucket reports whether name is a usable S3 bucket name. Bucket names
// are interpolated into shell commands, so anything else is rejected.
func ValidBucket(name string) bool {
	return bucketPattern.MatchString(name)
}

// ValidEmail is a coarse check for the certbot account address.
func ValidEmail(addr string) bool {
	at := strings.IndexByte(addr, '@')
	return at > 0 && at < len(addr)-1 && !strings.ContainsAny(addr, " \t\n'\"`$;&|<>\\")
}

func composeUp(file, service string) string {
	if file == "" {
		return fmt.Sprintf("docker-compose up %s -d", service)
	}
	return fmt.Sprintf("docker-compose -f %s up %s -d", file, service)
}

// RestartScripts pulls the latest orchestrator image and recreates its
// container. Second-brain hosts use their own compose file, with a separate
// variant when SSL terminates on per-port listeners.
func RestartScripts(cfg config.RestarterConfig, portBasedSSL bool) []string {
	compose := cfg.ComposeFile
	if cfg.SecondBrain {
		compose = cfg.SecondBrainFile
		if portBasedSSL {
			compose = cfg.SecondBrainSSL
		}
	}
	return []string{
		"docker pull " + swarmImage,
		"docker stop " + swarmContainer,
		"docker rm " + swarmContainer,
		composeUp(compose, swarmContainer),
	}
}

func SuperAdminScripts(cfg config.RestarterConfig) []string {
	return []string{
		"docker pull " + superAdminImage,
		"docker stop " + superAdminName,
		"docker rm " + superAdminName,
		composeUp(cfg.SuperAdminCompose, superAdminName),
	}
}

// RenewCertScript requests a wildcard certificate through the route53 DNS
// challenge.
func RenewCertScript(email string) string {
	return strings.Join([]string{
		"sudo certbot certonly",
		"--dns-route53",
		"--email " + email,
		"--agree-tos",
		"--expand",
		"--non-interactive",
		"--force-renewal",
		`-d "*.` + certDomain + `"`,
		`-d "` + certDomain + `"`,
	}, " ")
}

// UploadCertScripts packages the live certificate with the load balancer's
// TLS config and uploads it to bucket.
func UploadCertScripts(bucket string) []string {
	certs := adminHome + "/certs"
	archive := adminHome + "/data.zip"
	live := "/etc/letsencrypt/live/" + certDomain
	return []string{
		"sudo rm -rf " + certs,
		"sudo rm -f " + archive,
		"sudo mkdir -p " + certs,
		fmt.Sprintf("sudo cp %s/fullchain.pem %s/%s.crt", live, certs, certDomain),
		fmt.Sprintf("sudo cp %s/privkey.pem %s/%s.key", live, certs, certDomain),
		fmt.Sprintf("sudo cp %s/tls.yml %s/tls.yml", adminHome, certs),
		fmt.Sprintf("sudo zip -r %s %s/", archive, certs),
		fmt.Sprintf("aws s3 cp %s s3://%s/data.zip", archive, bucket),
	}
}

// UpdateSSLCertScripts downloads a certificate bundle from bucket and
// recreates the load balancer with it.
func UpdateSSLCertScripts(cfg config.RestarterConfig, bucket string) []string {
	certs := adminHome + "/certs"
	archive := adminHome + "/data.zip"
	return []string{
		"sudo rm -f " + archive,
		fmt.Sprintf("aws s3 cp s3://%s/data.zip %s/", bucket, adminHome),
		"docker stop load_balancer",
		"docker rm load_balancer",
		"sudo rm -rf " + certs,
		"sudo mkdir -p " + certs,
		fmt.Sprintf("sudo unzip -o -j %s -d %s/", archive, certs),
		fmt.Sprintf("sudo chown admin:admin %s/*", certs),
		fmt.Sprintf("sudo chmod 644 %s/%s.crt", certs, certDomain),
		fmt.Sprintf("sudo chmod 600 %s/%s.key", certs, certDomain),
		composeUp(cfg.SecondBrainSSL, "load_balancer"),
	}
}
