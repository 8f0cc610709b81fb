package common

import "fmt"

type Checker interface {
	GetFuncs() []CheckerFunc
}

type CheckerDeferFunc func(int, Checker, error)

var DefaultDeferFunc CheckerDeferFunc = func(int, Checker, error) {}

type CheckerFunc func(Checker, ...interface{}) error

type DefaultChecker struct {
	Funcs []CheckerFunc
}

func (c *DefaultChecker) GetFuncs() []CheckerFunc {
	return c.Funcs
}

// CheckerStop stops the remaining checker funcs without being an error; the
// message was handled, or intentionally ignored.
type CheckerStop struct {
	Message string
}

func NewCheckerStop(format string, a ...interface{}) CheckerStop {
	return CheckerStop{Message: fmt.Sprintf(format, a...)}
}

func (c CheckerStop) Error() string {
	return c.Message
}

func RunChecker(checker Checker, deferFunc CheckerDeferFunc, args ...interface{}) error {
	if deferFunc == nil {
		deferFunc = DefaultDeferFunc
	}

	var err error
	for i, f := range checker.GetFuncs() {
		if err = f(checker, args...); err != nil {
			deferFunc(i, checker, err)
			return err
		}
		deferFunc(i, checker, err)
	}
	return nil
}
