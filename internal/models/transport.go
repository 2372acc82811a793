package models

type CredentialsReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type TokenResp struct {
	Token string `json:"token"`
}

type BookmarkReq struct {
	Title string `json:"title" validate:"required"`
	URL   string `json:"url" validate:"required"`
}

type ErrorResp struct {
	Error string `json:"error"`
}
