package models

type DownloadQuery struct {
	// Token is the order's public token. Not needed with an admin JWT.
	Token string `form:"token"`
	// Mode overrides the server default: "stream" or "buffered".
	Mode string `form:"mode" binding:"omitempty,oneof=stream buffered"`
}

type UploadPhotoRequest struct {
	Title string `form:"title" binding:"max=200"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
