package subd

import (
	"fmt"
	"reflect"
	"runtime"
)

type systemFn any

// App runs its stages in order once per frame until stopped. Systems are
// plain functions whose pointer arguments are resolved from the resources.
type App struct {
	stages    []Stage
	systems   map[string][]systemFn
	resources map[reflect.Type]any
	profiler  *Profiler
	frames    uint64
	stopped   bool
}

func (app *App) Commands() *Commands {
	return &Commands{
		app: app,
	}
}

// Run steps frames until a system calls Commands.Stop.
func (app *App) Run() {
	app.Logger().Infof("running %d stages", len(app.stages))
	for !app.stopped {
		app.Step()
	}
}

// RunFrames steps at most n frames and returns how many ran.
func (app *App) RunFrames(n int) int {
	ran := 0
	for ; ran < n && !app.stopped; ran++ {
		app.Step()
	}
	return ran
}

// Step runs every stage once.
func (app *App) Step() {
	for _, stage := range app.stages {
		app.profiler.BeginScope(stage.Name)
		for _, system := range app.systems[stage.Name] {
			app.callSystem(system)
		}
		app.profiler.EndScope(stage.Name)
	}
	app.frames++
}

func (app *App) Frames() uint64 { return app.frames }

func (app *App) Stopped() bool { return app.stopped }

func (app *App) Profiler() *Profiler { return app.profiler }

func (app *App) stop() {
	app.stopped = true
}

func (app *App) addResources(resources ...any) *App {
	for _, resource := range resources {
		resourceType := reflect.TypeOf(resource)
		if resourceType.Kind() != reflect.Pointer {
			panic(fmt.Sprintf("%s is not a pointer resource", resourceType))
		}
		if _, ok := app.resources[resourceType.Elem()]; ok {
			panic(fmt.Sprintf("%s is already in resources", resourceType))
		}

		app.resources[resourceType.Elem()] = resource
	}
	return app
}

// Resource returns the resource of type *T if one was added.
func Resource[T any](app *App) (*T, bool) {
	r, ok := app.resources[reflect.TypeFor[T]()]
	if !ok {
		return nil, false
	}
	return r.(*T), true
}

var typeOfCommands = reflect.TypeOf(Commands{})

func (app *App) callSystem(system systemFn) {
	systemType := reflect.TypeOf(system)
	systemValue := reflect.ValueOf(system)

	args := make([]reflect.Value, systemType.NumIn())

	for i := 0; i < systemType.NumIn(); i++ {
		argType := systemType.In(i)
		if argType.Kind() != reflect.Pointer {
			app.unresolved(systemType, systemValue, argType)
		}
		underlyingType := argType.Elem()

		if underlyingType == typeOfCommands {
			args[i] = reflect.ValueOf(&Commands{app: app})
		} else if resource, argIsResource := app.resources[underlyingType]; argIsResource {
			args[i] = reflect.ValueOf(resource)
		} else {
			app.unresolved(systemType, systemValue, argType)
		}
	}
	systemValue.Call(args)
}

func (app *App) unresolved(systemType reflect.Type, systemValue reflect.Value, argType reflect.Type) {
	msg := fmt.Sprintf("Unable to resolve System dependency.\nSystem: %s\nSystem type: %s\nDependency: %s",
		runtime.FuncForPC(systemValue.Pointer()).Name(),
		fmt.Sprint(systemType),
		fmt.Sprint(argType),
	)
	app.Logger().Errorf("%s", msg)
	panic(msg)
}
