// Package integrations connects users to third-party services.
//
// Gmail and Google Calendar use OAuth2. Connect returns a Google consent URL
// carrying a signed state token; the browser is redirected back to
// /api/integrations/{provider}/callback, where Callback exchanges the code
// and stores the tokens. Reads go through the generated Google API clients,
// and tokens refreshed along the way are written back to the store.
//
// Spotify, WhatsApp, Slack and the todo list are connection toggles only.
package integrations
