// Package config loads named client profiles from YAML.
//
// A profile file looks like:
//
//	clients:
//	  billing:
//	    base_url: https://billing.example.com/v2
//	    timeout: 5s
//	    headers:
//	      X-Team: payments
//	    retry:
//	      attempts: 3
//	      delay: 250ms
//	    follow_redirects: 5
//	    verify_peer: true
//	    http2: attempt
//	    throttle:
//	      rps: 20
//	      burst: 5
//	    user_agent: billing-sync/1.0
package config
