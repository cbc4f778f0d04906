package roomhandler

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse

type ListSessionsQuery struct {
	Limit  int `form:"limit,default=10"  binding:"gte=0,lte=100"`
	Offset int `form:"offset,default=0"  binding:"gte=0"`
} // @name ListSessionsQuery

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
	Rooms  int    `json:"rooms"  example:"3"`
} // @name HealthResponse
