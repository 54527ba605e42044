// Package inventory models the hosts templates are rendered for.
//
// An inventory is loaded from a single YAML document:
//
//	defaults:
//	  username: admin
//	  data:
//	    ntp: 10.0.0.1
//	groups:
//	  core:
//	    platform: ios
//	    data:
//	      asn: 65000
//	hosts:
//	  router1:
//	    hostname: 10.0.0.10
//	    groups: [core]
//	    data:
//	      site: mad1
//
// Host data is resolved host first, then groups depth-first in declaration
// order, then defaults. Templates reach it through the host value:
//
//	{{ .host.Name }} {{ .host.Get "asn" }} {{ .host.Data.site }}
//
// Hosts can be selected with a CEL expression over the variable host:
//
//	inv.Filter(ctx, evaluator, "host.platform == 'ios' && 'core' in host.groups")
package inventory
