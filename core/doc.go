// Package core contains the Marketo integration contracts, configuration and the
// API client wrapper service. Transport, auth and provider adapters depend on this
// package; core must not depend on them.
package core
