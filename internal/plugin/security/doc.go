// Package security describes the authority granted to command plugins.
//
// The sandbox is capability based. A plugin receives exactly:
//
//   - filesystem.read / filesystem.write under a single preopened root,
//     mounted at "/" inside the guest
//   - the host functions of the capability surface
//
// Nothing else is grantable from configuration: network sockets and the host
// environment are denied by Grants.Grant. Widening that set is a change to the
// trust boundary, not a configuration option.
//
// Example:
//
//	grants, err := security.NewGrants("/home/me")
//	if err != nil {
//	    return err
//	}
//	grants.Revoke(security.CapabilityFileWrite) // read-only sandbox
//	grants.Limits = security.LimitsFromMegabytes(64)
package security
