package comms

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	kobuki "github.com/kobuki-driver/kobuki/driver"
)

// MotionPayload is the body accepted by POST /command/motion.
type MotionPayload struct {
	Vx float64 `json:"vx"`
	Wz float64 `json:"wz"`
}

func (m *MotionPayload) Bind(r *http.Request) error { return nil }

// NewRouter builds the driver's HTTP surface: unauthenticated telemetry
// reads under /sensors and /joint_state, and a JWT-gated /command/motion
// write, following the same middleware stack shape the rest of this
// codebase's HTTP servers use.
func NewRouter(d *kobuki.Driver, auth *Authenticator) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/api/login", auth.Login)

	r.Route("/sensors", func(r chi.Router) {
		r.Get("/default", func(w http.ResponseWriter, r *http.Request) { render.JSON(w, r, d.GetSensorData()) })
		r.Get("/ir", func(w http.ResponseWriter, r *http.Request) { render.JSON(w, r, d.GetIRData()) })
		r.Get("/dock_ir", func(w http.ResponseWriter, r *http.Request) { render.JSON(w, r, d.GetDockIRData()) })
		r.Get("/inertia", func(w http.ResponseWriter, r *http.Request) { render.JSON(w, r, d.GetInertiaData()) })
		r.Get("/cliff", func(w http.ResponseWriter, r *http.Request) { render.JSON(w, r, d.GetCliffData()) })
		r.Get("/current", func(w http.ResponseWriter, r *http.Request) { render.JSON(w, r, d.GetCurrentData()) })
		r.Get("/magnet", func(w http.ResponseWriter, r *http.Request) { render.JSON(w, r, d.GetMagnetData()) })
		r.Get("/time", func(w http.ResponseWriter, r *http.Request) { render.JSON(w, r, d.GetTimeData()) })
		r.Get("/hw", func(w http.ResponseWriter, r *http.Request) { render.JSON(w, r, d.GetHWData()) })
		r.Get("/fw", func(w http.ResponseWriter, r *http.Request) { render.JSON(w, r, d.GetFWData()) })
		r.Get("/st_gyro", func(w http.ResponseWriter, r *http.Request) { render.JSON(w, r, d.GetStGyroData()) })
		r.Get("/eeprom", func(w http.ResponseWriter, r *http.Request) { render.JSON(w, r, d.GetEEPROMData()) })
		r.Get("/gp_input", func(w http.ResponseWriter, r *http.Request) { render.JSON(w, r, d.GetGPInputData()) })
	})

	r.Get("/joint_state", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")
		if name == "" {
			render.JSON(w, r, d.JointStates())
			return
		}
		js, err := d.GetJointState(name)
		if err != nil {
			render.Render(w, r, ErrNotFound(err))
			return
		}
		render.JSON(w, r, js)
	})

	r.Route("/command", func(r chi.Router) {
		r.Use(auth.Middleware)
		r.Post("/motion", func(w http.ResponseWriter, r *http.Request) {
			data := &MotionPayload{}
			if err := render.Bind(r, data); err != nil {
				render.Render(w, r, ErrInvalidRequest(err))
				return
			}
			d.SetMotion(data.Vx, data.Wz)
			render.NoContent(w, r)
		})
	})

	r.Get("/ws/telemetry", TelemetryWebsocketHandler(d))

	return r
}
