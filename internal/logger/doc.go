// Package logger wraps zap with a global sugared logger and context helpers.
//
// Every service receives a context and logs through the logger stored in it
// (ToContext/FromContext/WithName/WithKV), so a component name and request
// fields travel with the call instead of being threaded by hand.
package logger
