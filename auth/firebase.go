// Package auth initializes the Firebase app used to verify the ID
// tokens issued to mobile and web clients. Identity itself (sign-up,
// login, password reset) lives entirely in Firebase.
package auth

import (
	"context"
	"fmt"
	"os"

	firebase "firebase.google.com/go"
	fbauth "firebase.google.com/go/auth"
	"google.golang.org/api/option"
)

// NewClient builds the Firebase auth client. Credentials come from a
// service-account file when configured, otherwise from the
// FIREBASE_CREDENTIALS_JSON blob in the environment.
func NewClient(ctx context.Context, credentialsFile, projectID string) (*fbauth.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("firebase project id is required")
	}

	var opts []option.ClientOption
	switch {
	case credentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	case os.Getenv("FIREBASE_CREDENTIALS_JSON") != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(os.Getenv("FIREBASE_CREDENTIALS_JSON"))))
	default:
		return nil, fmt.Errorf("no firebase credentials configured")
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth client: %w", err)
	}
	return client, nil
}
