// Package runner drives one full sync: authenticate against every court
// portal, fetch the scheduled hearings, diff them against the previous run
// and push the changes to every configured destination.
package runner
