// Package triage is the decision core of Aegis. It holds the domain models,
// the automation policy and its ConfigStore, the Engine (lane/priority
// rules, grouping strategies, action aggregation), the adaptive Learner,
// template selection, digest rendering, the Store interface, and the
// Service that orchestrates intake, passes, feedback, and policy admin.
package triage
