/*
To write to files in a robust way we should:

- handle error returned by `Close()`

- handle error returned by `Write()`

- remove partially written file if `Write()` or `Close()` returned an error

- make sure a crash never leaves a half-written file at the destination

Package atomicfile makes it easy to get this logic right. pmemlog uses it
to format new pools: the pool is built in a temporary file and only linked
into place once the header is on disk.

	func writeToFileAtomically(filePath string, data []byte) error {
		w, err := atomicfile.New(filePath)
		if err != nil {
			return err
		}
		// calling Close() twice is a no-op
		defer w.Close()

		_, err = w.Write(data)
		if err != nil {
			return err
		}
		return w.Close()
	}

With Config.NoClobber, Close() fails (errors.Is(err, os.ErrExist)) instead
of replacing an existing file.

To learn more see https://presstige.io/p/atomicfile-22143bf788b542fda2262ca7aee57ae4
*/
package atomicfile
