// Package security provides the zero-trust outbound-network policy used by
// the HTTPClient node.
//
// # Overview
//
// SSRFProtection validates a request URL against a configurable policy
// before the HTTPClient executor dials it, and again on every redirect,
// so a workflow cannot be used to reach internal services, cloud metadata
// endpoints, or loopback addresses through a crafted binding.
//
// # Basic usage
//
//	ssrf := security.NewSSRFProtectionWithConfig(security.SSRFConfig{
//	    AllowedSchemes:     []string{"http", "https"},
//	    BlockPrivateIPs:    true,
//	    BlockLocalhost:     true,
//	    BlockLinkLocal:     true,
//	    BlockCloudMetadata: true,
//	    AllowedDomains:     []string{"api.example.com"},
//	})
//
//	if err := ssrf.ValidateURL(requestURL); err != nil {
//	    return fmt.Errorf("URL rejected by network policy: %w", err)
//	}
//
// # What is checked
//
//   - Scheme: only schemes in AllowedSchemes (default http/https)
//   - Hostname: DNS-resolved and checked against AllowedDomains if set
//   - IP class: private (RFC 1918), loopback, link-local (169.254.0.0/16,
//     which also covers the AWS/GCP/Azure metadata address), and any
//     other address the BlockXxx flags name
//
// A zero-value SSRFConfig has every BlockXxx flag false, so it rejects
// only non-http(s) schemes; DefaultSSRFConfig returns the safe-by-default
// policy with every BlockXxx flag set. Config flags are
// meant to be flipped on deliberately per environment (e.g. a development
// config might set BlockPrivateIPs: false to let the HTTPClient node call
// a service on the operator's own LAN).
package security
