package httpserver

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", s.metricsEndpoint)

	api := s.echo.Group("/api/v1")
	limited := s.middleware.RateLimit.Handler()

	api.POST("/signup", s.signup, limited)
	api.GET("/verify", s.verifyEmail)
	api.POST("/verify", s.verifyEmail)
	api.POST("/resend-verification", s.resendVerificationEmail, limited)
}
