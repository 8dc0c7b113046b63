// Command songforge runs the API server and provides operator utilities
// for quotas, history, configuration, and notifications.
package main
