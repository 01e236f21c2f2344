// Package connectivity answers the "is the network up" question the channels
// ask before attempting a remote call.
package connectivity
