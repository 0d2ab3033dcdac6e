package git

// MockCommandRunner is a CommandRunner whose behaviour is supplied per test.
type MockCommandRunner struct {
	OutputFunc func(dir string, name string, args ...string) ([]byte, error)
	Calls      [][]string
}

func (m *MockCommandRunner) Output(dir string, name string, args ...string) ([]byte, error) {
	m.Calls = append(m.Calls, append([]string{name}, args...))
	if m.OutputFunc == nil {
		return []byte{}, nil
	}
	return m.OutputFunc(dir, name, args...)
}
