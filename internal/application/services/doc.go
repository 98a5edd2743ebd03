// Package services holds the clinic's application logic: authentication,
// queue tokens, consultations, IVR booking and SMS delivery.
//
// Services talk to the database only through the persistence repositories and
// run multi-step writes inside persistence.TransactionManager transactions.
// Errors meant for API clients are pkg/errors AppErrors; everything else is
// wrapped with fmt.Errorf and surfaces as an internal error.
package services
